package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/vidyalaya/prayerbell/internal/upload"
	"github.com/vidyalaya/prayerbell/prayer"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string

	// Timeout bounds every request; defaults to 30s.
	Timeout time.Duration

	// RequestsPerMinute throttles the client; defaults to 120.
	RequestsPerMinute int

	// HTTPClient replaces the default transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is the REST client of the school management API.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

type settingsPayload struct {
	SchoolID string `json:"school_id"`
	prayer.Schedule
}

type uploadResponse struct {
	AudioURL string `json:"audio_url"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// New creates a client.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", opts.BaseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 120
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		base:    base,
		token:   opts.Token,
		http:    hc,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 5),
		logger:  log.WithPrefix("backend"),
	}, nil
}

// GetSchedule fetches the saved schedule of a school.
func (c *Client) GetSchedule(ctx context.Context, schoolID string) (prayer.Schedule, error) {
	var payload settingsPayload
	payload.Schedule = prayer.DefaultSchedule()
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("api", "prayer-settings", schoolID), nil, &payload); err != nil {
		return prayer.Schedule{}, err
	}
	if payload.PrayersSequence == nil {
		payload.PrayersSequence = []string{}
	}
	return payload.Schedule, nil
}

// SaveSchedule stores the schedule of a school.
func (c *Client) SaveSchedule(ctx context.Context, schoolID string, s prayer.Schedule) error {
	body, err := json.Marshal(settingsPayload{SchoolID: schoolID, Schedule: s})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPut, c.endpoint("api", "prayer-settings", schoolID), bytes.NewReader(body), nil)
}

// UploadAudio sends a clip to the backend and returns its permanent URL.
func (c *Client) UploadAudio(ctx context.Context, schoolID, prayerID string, f upload.File) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, f.Name))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return "", err
	}
	if err := mw.WriteField("school_id", schoolID); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("api", "prayers", prayerID, "audio"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.AudioURL) == "" {
		return "", errors.New("backend: upload response has no audio_url")
	}
	return resp.AudioURL, nil
}

// Persist implements upload.Persister.
func (c *Client) Persist(ctx context.Context, schoolID, prayerID string, f upload.File) (string, error) {
	return c.UploadAudio(ctx, schoolID, prayerID, f)
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("Request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "took", time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

// maxErrorMessage caps, in runes, how much of a non-JSON error body is kept.
const maxErrorMessage = 200

func errorMessage(data []byte) string {
	var e errorResponse
	if json.Unmarshal(data, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if r := []rune(msg); len(r) > maxErrorMessage {
		msg = string(r[:maxErrorMessage])
	}
	return msg
}
