package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/playback"
)

func wavBytes(format, channels uint16, rate uint32, bits uint16, dataSize uint32, pcm []byte) []byte {
	b := []byte("RIFF\x00\x00\x00\x00WAVE")
	b = append(b, "fmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, format)
	b = binary.LittleEndian.AppendUint16(b, channels)
	b = binary.LittleEndian.AppendUint32(b, rate)
	b = binary.LittleEndian.AppendUint32(b, rate*uint32(channels)*uint32(bits/8))
	b = binary.LittleEndian.AppendUint16(b, channels*bits/8)
	b = binary.LittleEndian.AppendUint16(b, bits)
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, dataSize)
	return append(b, pcm...)
}

func TestPCMFromWAV(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	got, info, err := PCMFromWAV(wavBytes(1, 1, 22050, 16, 4, pcm))
	if err != nil {
		t.Fatalf("PCMFromWAV failed: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
	if info.SampleRate != 22050 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Errorf("info = %+v", info)
	}
}

func TestPCMFromWAV_StreamedSize(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	got, _, err := PCMFromWAV(wavBytes(1, 1, 22050, 16, 0xFFFFFFFF, pcm))
	if err != nil {
		t.Fatalf("PCMFromWAV failed: %v", err)
	}
	if len(got) != len(pcm) {
		t.Errorf("got %d bytes, want %d", len(got), len(pcm))
	}
}

func TestPCMFromWAV_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"empty":    nil,
		"not riff": []byte("OggS0000WAVE"),
		"float":    wavBytes(3, 1, 22050, 16, 2, []byte{0, 0}),
		"8-bit":    wavBytes(1, 1, 22050, 8, 2, []byte{0, 0}),
		"no data":  wavBytes(1, 1, 22050, 16, 0, nil)[:36],
	}
	for name, b := range tests {
		if _, _, err := PCMFromWAV(b); !errors.Is(err, ErrInvalidWAV) {
			t.Errorf("%s: error = %v, want ErrInvalidWAV", name, err)
		}
	}
}

func TestVoiceFor(t *testing.T) {
	voices := map[string]string{"hi-IN": "hi", "en-IN": "en"}
	tests := map[string]string{
		"hi-IN": "hi",
		"en-IN": "en",
		"en-US": "en",
		"EN":    "en",
		"ur-PK": "hi",
		"":      "hi",
	}
	for locale, want := range tests {
		if got := VoiceFor(voices, locale); got != want {
			t.Errorf("VoiceFor(%q) = %q, want %q", locale, got, want)
		}
	}
	if got := VoiceFor(map[string]string{}, "en-IN"); got != "hi" {
		t.Errorf("VoiceFor with no voices = %q", got)
	}
}

func TestEspeakArgs(t *testing.T) {
	args := strings.Join(espeakArgs(playback.Utterance{Rate: 0.85, Pitch: 1}, "hi"), " ")
	if args != "-v hi -s 149 -p 50 --stdout --stdin" {
		t.Errorf("args = %q", args)
	}

	args = strings.Join(espeakArgs(playback.Utterance{Rate: 10, Pitch: 2}, "en"), " ")
	if args != "-v en -s 450 -p 99 --stdout --stdin" {
		t.Errorf("clamped args = %q", args)
	}

	args = strings.Join(espeakArgs(playback.Utterance{}, "en"), " ")
	if args != "-v en -s 175 -p 0 --stdout --stdin" {
		t.Errorf("zero args = %q", args)
	}
}

func TestDecodeArgs(t *testing.T) {
	got := strings.Join(decodeArgs("pipe:0", 22050, 1), " ")
	want := "-hide_banner -loglevel error -i pipe:0 -vn -f s16le -acodec pcm_s16le -ac 1 -ar 22050 pipe:1"
	if got != want {
		t.Errorf("decodeArgs = %q", got)
	}
}

func TestValidateOutputConfig(t *testing.T) {
	if err := validateOutputConfig(DefaultOutputConfig()); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := []OutputConfig{
		{SampleRate: 100, Channels: 1},
		{SampleRate: 22050, Channels: 3},
		{SampleRate: 22050, Channels: 1, BufferSize: -1},
	}
	for _, c := range bad {
		if err := validateOutputConfig(c); err == nil {
			t.Errorf("config %+v accepted", c)
		}
	}
}

func TestFFmpegPlayer_Load(t *testing.T) {
	store, err := blobstore.NewStore(blobstore.Options{MemoryCapacity: 1024})
	if err != nil {
		t.Fatal(err)
	}
	url, _ := store.Put([]byte("clip"), "audio/mpeg")

	p := NewFFmpegPlayer(nil, "", store)
	if err := p.Load("  "); !errors.Is(err, ErrNoSource) {
		t.Errorf("Load(blank) error = %v", err)
	}
	if err := p.Load(blobstore.URL("gone")); !errors.Is(err, blobstore.ErrNotFound) {
		t.Errorf("Load(missing blob) error = %v", err)
	}
	if err := p.Load(url); err != nil {
		t.Errorf("Load(blob) failed: %v", err)
	}
	if err := p.Load("https://cdn.example.com/gayatri.mp3"); err != nil {
		t.Errorf("Load(remote) failed: %v", err)
	}

	noStore := NewFFmpegPlayer(nil, "", nil)
	if err := noStore.Load(url); err == nil {
		t.Error("Load(blob) without store succeeded")
	}
}

func TestFFmpegPlayer_PlayWithoutSource(t *testing.T) {
	p := NewFFmpegPlayer(nil, "", nil)
	if err := p.Play(context.Background(), nil); !errors.Is(err, ErrNoSource) {
		t.Errorf("Play error = %v, want ErrNoSource", err)
	}
	// Pause and Rewind without a stream are no-ops.
	p.Pause()
	p.Rewind()
}

func TestEspeakSynthesizer_MissingBinary(t *testing.T) {
	s := NewEspeakSynthesizer(nil, "prayerbell-no-such-binary", "", nil)
	if s.Available() {
		t.Error("synthesizer available without binary")
	}
}

func TestMockSynthesizer_CancelIsAsynchronous(t *testing.T) {
	m := NewMockSynthesizer(true)
	got := make(chan error, 1)
	m.Speak(playback.Utterance{Text: "om"}, func(err error) { got <- err })
	m.Cancel()

	select {
	case err := <-got:
		if !errors.Is(err, playback.ErrCanceled) {
			t.Errorf("callback error = %v, want ErrCanceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancel callback never fired")
	}
	if m.Speaking() {
		t.Error("still speaking after cancel")
	}
}

func TestMockRecorder_Duration(t *testing.T) {
	m := NewMockRecorder()
	m.Duration = 10 * time.Millisecond
	ended := make(chan struct{})
	if err := m.Play(context.Background(), func() { close(ended) }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("clip never ended")
	}
	if m.IsPlaying() {
		t.Error("still playing after end")
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct{ v, want int }{{-5, 0}, {0, 0}, {42, 42}, {99, 99}, {150, 99}}
	for _, tt := range tests {
		if got := clampInt(tt.v, 0, 99); got != tt.want {
			t.Errorf("clampInt(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}
