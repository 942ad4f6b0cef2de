package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/playback"
)

// ErrNoSource is returned by Play before a source was loaded.
var ErrNoSource = errors.New("no source loaded")

// BlobSource resolves blob:// references to locally stored clips.
type BlobSource interface {
	Get(url string) (blobstore.Blob, error)
}

// FFmpegPlayer implements playback.RecordingPlayer. It decodes any source
// ffmpeg understands into PCM and streams it into the shared output.
type FFmpegPlayer struct {
	output Output
	binary string
	blobs  BlobSource

	mu     sync.Mutex
	source string
	volume float64
	cur    *stream

	pollInterval time.Duration
	logger       *log.Logger
}

type stream struct {
	cmd    *exec.Cmd
	reader *io.PipeReader
	track  Track
	cancel context.CancelFunc
	exited chan struct{}
	stop   chan struct{}
	paused bool
}

// NewFFmpegPlayer creates a recording player. blobs may be nil when no local
// uploads are served.
func NewFFmpegPlayer(output Output, binary string, blobs BlobSource) *FFmpegPlayer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegPlayer{
		output:       output,
		binary:       binary,
		blobs:        blobs,
		volume:       1,
		pollInterval: 50 * time.Millisecond,
		logger:       log.WithPrefix("recorder"),
	}
}

// Available reports whether the ffmpeg binary can be found.
func (p *FFmpegPlayer) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// Load sets the source of the next playback. Loading drops the current stream.
func (p *FFmpegPlayer) Load(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrNoSource
	}
	if blobstore.IsBlobURL(url) {
		if p.blobs == nil {
			return fmt.Errorf("no local clip store for %s", url)
		}
		if _, err := p.blobs.Get(url); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.discardLocked()
	p.source = url
	return nil
}

// SetVolume applies the level to the live track and to later ones.
func (p *FFmpegPlayer) SetVolume(level float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = level
	if p.cur != nil {
		p.cur.track.SetVolume(level)
	}
}

// Play resumes a paused stream or starts decoding the loaded source. It
// returns once the first PCM bytes are available.
func (p *FFmpegPlayer) Play(ctx context.Context, onEnded func()) error {
	p.mu.Lock()
	if p.cur != nil && p.cur.paused {
		p.cur.paused = false
		p.cur.track.Play()
		p.mu.Unlock()
		return nil
	}
	p.discardLocked()
	source := p.source
	volume := p.volume
	p.mu.Unlock()

	if source == "" {
		return ErrNoSource
	}

	s, br, err := p.start(ctx, source)
	if err != nil {
		return err
	}

	p.mu.Lock()
	s.track = p.output.NewTrack(br)
	s.track.SetVolume(volume)
	s.track.Play()
	p.cur = s
	p.mu.Unlock()

	go p.monitor(s, onEnded)
	return nil
}

// Pause halts output and keeps the position.
func (p *FFmpegPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil && !p.cur.paused {
		p.cur.paused = true
		p.cur.track.Pause()
	}
}

// Rewind resets to the start by dropping the decoded stream; the next Play
// decodes from the beginning.
func (p *FFmpegPlayer) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discardLocked()
}

func (p *FFmpegPlayer) start(ctx context.Context, source string) (*stream, *bufio.Reader, error) {
	input := source
	var stdin io.Reader
	if blobstore.IsBlobURL(source) {
		blob, err := p.blobs.Get(source)
		if err != nil {
			return nil, nil, err
		}
		input = "pipe:0"
		stdin = bytes.NewReader(blob.Data)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(streamCtx, p.binary, decodeArgs(input, p.output.SampleRate(), p.output.Channels())...)
	pr, pw := io.Pipe()
	var stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = pw
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("unable to start %s: %w", p.binary, err)
	}

	s := &stream{
		cmd:    cmd,
		reader: pr,
		cancel: cancel,
		exited: make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		if err != nil && streamCtx.Err() == nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			err = fmt.Errorf("decode %s: %s", source, msg)
		}
		_ = pw.CloseWithError(err)
		close(s.exited)
	}()

	br := bufio.NewReaderSize(pr, 64*1024)
	peeked := make(chan error, 1)
	go func() {
		_, err := br.Peek(1)
		peeked <- err
	}()

	select {
	case err := <-peeked:
		if err != nil {
			s.close()
			if errors.Is(err, io.EOF) {
				return nil, nil, fmt.Errorf("decode %s: no audio data", source)
			}
			return nil, nil, err
		}
	case <-ctx.Done():
		s.close()
		return nil, nil, ctx.Err()
	}
	p.logger.Debug("Decoder started", "source", source)
	return s, br, nil
}

func (p *FFmpegPlayer) monitor(s *stream, onEnded func()) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.cur != s {
			p.mu.Unlock()
			return
		}
		if s.paused || s.track.IsPlaying() {
			p.mu.Unlock()
			continue
		}
		select {
		case <-s.exited:
		default:
			p.mu.Unlock()
			continue
		}
		p.cur = nil
		s.close()
		p.mu.Unlock()

		if onEnded != nil {
			onEnded()
		}
		return
	}
}

func (p *FFmpegPlayer) discardLocked() {
	if p.cur == nil {
		return
	}
	p.cur.close()
	p.cur = nil
}

func (s *stream) close() {
	select {
	case <-s.stop:
		return
	default:
		close(s.stop)
	}
	s.cancel()
	_ = s.reader.Close()
	if s.track != nil {
		s.track.Pause()
		_ = s.track.Close()
	}
}

// decodeArgs builds the ffmpeg command line that writes s16le PCM to stdout.
func decodeArgs(input string, sampleRate, channels int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", input,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"pipe:1",
	}
}

var _ playback.RecordingPlayer = (*FFmpegPlayer)(nil)
