// Package prayer holds the domain types shared by the playback service: the
// prayer catalog and the assembly schedule.
package prayer

import "strings"

// Language selects the synthesizer locale for a prayer's lyrics.
type Language string

const (
	LanguageHindi    Language = "hindi"
	LanguageSanskrit Language = "sanskrit"
	LanguageUrdu     Language = "urdu"
	LanguageEnglish  Language = "english"
)

// DefaultLocale is used for languages missing from the locale table.
const DefaultLocale = "hi-IN"

var locales = map[Language]string{
	LanguageHindi:    "hi-IN",
	LanguageSanskrit: "hi-IN",
	LanguageUrdu:     "hi-IN",
	LanguageEnglish:  "en-IN",
}

// Locale returns the synthesizer locale for the language.
func (l Language) Locale() string {
	if loc, ok := locales[Language(strings.ToLower(string(l)))]; ok {
		return loc
	}
	return DefaultLocale
}

// Category is a display-only classification tag.
type Category string

const (
	CategoryMorning   Category = "morning"
	CategoryPatriotic Category = "patriotic"
	CategoryNational  Category = "national"
)

// Prayer is a catalog entry.
type Prayer struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Lyrics   string   `yaml:"lyrics" json:"lyrics"`
	Language Language `yaml:"language" json:"language"`
	Category Category `yaml:"category" json:"category"`
	AudioURL string   `yaml:"audio_url,omitempty" json:"audio_url,omitempty"`
}

// HasRecording reports whether playback goes through the recording path.
func (p Prayer) HasRecording() bool {
	return strings.TrimSpace(p.AudioURL) != ""
}

// Locale returns the synthesizer locale for the prayer's language.
func (p Prayer) Locale() string {
	return p.Language.Locale()
}
