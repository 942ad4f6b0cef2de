package upload

import (
	"github.com/vidyalaya/prayerbell/playback"
)

// AllowedTypes are the media types accepted for recordings.
var AllowedTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/ogg":   true,
	"audio/webm":  true,
}

// AllowedExtensions are the filename extensions accepted when the media type
// is missing or not recognised.
var AllowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".webm": true,
}

// Validate accepts f when its media type or its extension is allow-listed.
func Validate(f File) error {
	if len(f.Data) == 0 {
		return &playback.ValidationError{Field: "file", Value: f.Name, Reason: "file is empty"}
	}
	if AllowedTypes[f.MediaType()] || AllowedExtensions[f.Ext()] {
		return nil
	}
	value := f.ContentType
	if value == "" {
		value = f.Name
	}
	return &playback.ValidationError{
		Field:  "file type",
		Value:  value,
		Reason: "only mp3, wav, ogg and webm recordings are accepted",
	}
}
