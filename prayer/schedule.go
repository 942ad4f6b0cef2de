package prayer

import "strings"

// Schedule is the assembly configuration of a school. It is stored and synced
// as an opaque object; only the scheduler looks at Time.
type Schedule struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	Time             string   `json:"scheduled_time" yaml:"scheduled_time"`
	Duration         int      `json:"duration" yaml:"duration"`
	AutoStart        bool     `json:"auto_start" yaml:"auto_start"`
	PrayersSequence  []string `json:"prayers_sequence" yaml:"prayers_sequence"`
	PreAnnouncement  bool     `json:"pre_announcement" yaml:"pre_announcement"`
	AnnouncementText string   `json:"announcement_text" yaml:"announcement_text"`
}

// DefaultSchedule is what a school gets before it saved anything.
func DefaultSchedule() Schedule {
	return Schedule{
		Enabled:          false,
		Time:             "08:00",
		Duration:         15,
		AutoStart:        false,
		PrayersSequence:  []string{},
		PreAnnouncement:  false,
		AnnouncementText: "कृपया प्रार्थना के लिए खड़े हो जाएं",
	}
}

// First returns the first prayer id of the sequence.
func (s Schedule) First() (string, bool) {
	for _, id := range s.PrayersSequence {
		if id = strings.TrimSpace(id); id != "" {
			return id, true
		}
	}
	return "", false
}

// Announcement returns the text to speak before the first prayer, if any.
func (s Schedule) Announcement() (string, bool) {
	if !s.PreAnnouncement {
		return "", false
	}
	text := strings.TrimSpace(s.AnnouncementText)
	return text, text != ""
}

// Clone returns a copy that does not share the sequence slice.
func (s Schedule) Clone() Schedule {
	c := s
	c.PrayersSequence = make([]string, len(s.PrayersSequence))
	copy(c.PrayersSequence, s.PrayersSequence)
	return c
}
