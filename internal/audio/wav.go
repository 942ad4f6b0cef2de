package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidWAV is returned for data that is not 16-bit PCM RIFF/WAVE.
var ErrInvalidWAV = errors.New("invalid WAV data")

// WAVInfo describes the PCM payload of a WAV file.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// PCMFromWAV returns the data chunk of a RIFF/WAVE file. Streams written to a
// pipe carry a placeholder data size, so a size beyond the end of the input
// means "until EOF".
func PCMFromWAV(b []byte) ([]byte, WAVInfo, error) {
	var info WAVInfo
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, info, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	haveFormat := false
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8

		switch id {
		case "fmt ":
			if body+16 > len(b) {
				return nil, info, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, info, fmt.Errorf("%w: format %d is not PCM", ErrInvalidWAV, format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))
			if info.BitsPerSample != 16 {
				return nil, info, fmt.Errorf("%w: %d-bit samples", ErrInvalidWAV, info.BitsPerSample)
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, info, fmt.Errorf("%w: data before fmt chunk", ErrInvalidWAV)
			}
			end := body + size
			if size == 0 || end > len(b) || end < body {
				end = len(b)
			}
			return b[body:end], info, nil
		}

		next := body + size + size%2
		if next <= pos || next > len(b) {
			break
		}
		pos = next
	}
	return nil, info, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}
