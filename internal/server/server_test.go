package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/vidyalaya/prayerbell/internal/audio"
	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/internal/server"
	"github.com/vidyalaya/prayerbell/internal/settings"
	"github.com/vidyalaya/prayerbell/internal/upload"
	"github.com/vidyalaya/prayerbell/playback"
	"github.com/vidyalaya/prayerbell/prayer"
)

type fixture struct {
	handler  http.Handler
	recorder *audio.MockRecorder
	speech   *audio.MockSynthesizer
	catalog  *prayer.Catalog
	uploader *upload.Uploader
	applied  []prayer.Schedule
}

func (f *fixture) Apply(s prayer.Schedule) error {
	f.applied = append(f.applied, s)
	return nil
}

func newFixture(t *testing.T, speechAvailable bool) *fixture {
	t.Helper()
	return newSizedFixture(t, speechAvailable, 1<<20)
}

func newSizedFixture(t *testing.T, speechAvailable bool, blobCapacity int64) *fixture {
	t.Helper()
	catalog := prayer.NewCatalog(
		prayer.Prayer{ID: "x", Name: "Om", Lyrics: "Om", Language: prayer.LanguageSanskrit},
		prayer.Prayer{ID: "y", Name: "Recorded", Lyrics: "...", Language: prayer.LanguageHindi, AudioURL: "https://cdn.example.com/y.mp3"},
	)
	blobs, err := blobstore.NewStore(blobstore.Options{MemoryCapacity: blobCapacity})
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		recorder: audio.NewMockRecorder(),
		speech:   audio.NewMockSynthesizer(speechAvailable),
		catalog:  catalog,
	}
	ctrl := playback.NewController(f.recorder, f.speech, catalog, playback.DefaultConfig())
	f.uploader = upload.NewUploader(catalog, blobs, nil)
	srv := server.New(server.Deps{
		SchoolID:   "school-7",
		Controller: ctrl,
		Catalog:    catalog,
		Uploader:   f.uploader,
		Blobs:      blobs,
		Settings:   settings.NewStore(nil),
		Scheduler:  f,
	})
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func multipartBody(t *testing.T, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestListAndGetPrayers(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/prayers", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[1]["has_recording"] != true {
		t.Errorf("list = %v", list)
	}

	if rec := f.do(t, http.MethodGet, "/api/prayers/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown prayer status = %d", rec.Code)
	}
}

func TestPlayStopAndVolume(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodPost, "/api/prayers/x/play", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("play status = %d: %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if body["state"] != "playing" || body["source"] != "synthesized" {
		t.Errorf("play response = %v", body)
	}
	if spoken := f.speech.Spoken(); len(spoken) != 1 || spoken[0].Locale != "hi-IN" {
		t.Errorf("spoken = %+v", spoken)
	}

	rec = f.do(t, http.MethodPut, "/api/playback/volume", strings.NewReader(`{"volume":50}`), "application/json")
	if rec.Code != http.StatusOK || decode(t, rec)["level"] != 0.5 {
		t.Errorf("volume response = %d %s", rec.Code, rec.Body)
	}

	rec = f.do(t, http.MethodPut, "/api/playback/mute", strings.NewReader(`{"muted":true}`), "application/json")
	if body := decode(t, rec); body["level"] != 0.0 || body["state"] != "playing" {
		t.Errorf("mute response = %v", body)
	}

	rec = f.do(t, http.MethodPost, "/api/playback/stop", nil, "")
	if body := decode(t, rec); body["state"] != "idle" || body["selected"] != nil {
		t.Errorf("stop response = %v", body)
	}
}

func TestVolumeRejectsBadBodies(t *testing.T) {
	f := newFixture(t, true)
	for _, body := range []string{`{}`, `{"volume":101}`, `nope`} {
		rec := f.do(t, http.MethodPut, "/api/playback/volume", strings.NewReader(body), "application/json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d", body, rec.Code)
		}
	}
}

func TestPlayErrors(t *testing.T) {
	f := newFixture(t, false)

	if rec := f.do(t, http.MethodPost, "/api/prayers/x/play", nil, ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("unsupported speech status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/prayers/missing/play", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown prayer status = %d", rec.Code)
	}

	f.recorder.PlayError = io.ErrUnexpectedEOF
	rec := f.do(t, http.MethodPost, "/api/prayers/y/play", nil, "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("playback failure status = %d", rec.Code)
	}
	if decode(t, rec)["kind"] != "playback" {
		t.Errorf("kind = %v", rec.Body)
	}

	rec = f.do(t, http.MethodGet, "/api/playback", nil, "")
	if body := decode(t, rec); body["state"] != "idle" {
		t.Errorf("state after failure = %v", body["state"])
	}
}

func TestUploadAndServeBlob(t *testing.T) {
	f := newFixture(t, true)

	body, ct := multipartBody(t, "om.mp3", "audio/mpeg", []byte("ID3 om"))
	rec := f.do(t, http.MethodPost, "/api/prayers/x/audio", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body)
	}
	local, _ := decode(t, rec)["local_url"].(string)
	if !blobstore.IsBlobURL(local) {
		t.Fatalf("local_url = %q", local)
	}
	f.uploader.Wait()

	id, _ := blobstore.ID(local)
	rec = f.do(t, http.MethodGet, "/api/blobs/"+id, nil, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ID3 om" {
		t.Errorf("blob = %d %q", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("blob Content-Type = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/api/prayers/x/audio/status", nil, "")
	if body := decode(t, rec); body["state"] != string(upload.StateLocalOnly) {
		t.Errorf("status = %v", body)
	}

	// Playing x now takes the recording path.
	f.do(t, http.MethodPost, "/api/prayers/x/play", nil, "")
	if f.recorder.Source() != local {
		t.Errorf("recorder source = %q, want %q", f.recorder.Source(), local)
	}
}

func TestUploadWhenClipStoreIsFull(t *testing.T) {
	f := newSizedFixture(t, true, 8)

	body, ct := multipartBody(t, "om.mp3", "audio/mpeg", []byte("ID3 om"))
	if rec := f.do(t, http.MethodPost, "/api/prayers/x/audio", body, ct); rec.Code != http.StatusAccepted {
		t.Fatalf("first upload status = %d: %s", rec.Code, rec.Body)
	}
	f.uploader.Wait()

	body, ct = multipartBody(t, "y.mp3", "audio/mpeg", []byte("ID3 yy"))
	rec := f.do(t, http.MethodPost, "/api/prayers/y/audio", body, ct)
	if rec.Code != http.StatusInsufficientStorage {
		t.Errorf("second upload status = %d, want 507: %s", rec.Code, rec.Body)
	}
	if p, _ := f.catalog.Get("y"); p.AudioURL != "https://cdn.example.com/y.mp3" {
		t.Errorf("audio URL mutated to %q", p.AudioURL)
	}
}

func TestUploadRejectsPDF(t *testing.T) {
	f := newFixture(t, true)

	body, ct := multipartBody(t, "notes.pdf", "application/pdf", []byte("%PDF"))
	rec := f.do(t, http.MethodPost, "/api/prayers/x/audio", body, ct)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d", rec.Code)
	}
	if p, _ := f.catalog.Get("x"); p.AudioURL != "" {
		t.Errorf("audio URL mutated to %q", p.AudioURL)
	}

	if rec := f.do(t, http.MethodPost, "/api/prayers/x/audio", strings.NewReader("x"), "text/plain"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file status = %d", rec.Code)
	}
}

func TestScheduleAndSession(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/schedule", nil, "")
	if body := decode(t, rec); body["persisted"] != false {
		t.Errorf("default schedule = %v", body)
	}

	put := `{"enabled":true,"scheduled_time":"07:30","auto_start":true,"prayers_sequence":["x"],"pre_announcement":true,"announcement_text":"Please stand"}`
	rec = f.do(t, http.MethodPut, "/api/schedule", strings.NewReader(put), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("put schedule = %d %s", rec.Code, rec.Body)
	}
	if len(f.applied) != 1 || f.applied[0].Time != "07:30" {
		t.Errorf("applied = %+v", f.applied)
	}

	rec = f.do(t, http.MethodPut, "/api/schedule", strings.NewReader(`{"scheduled_time":"7pm"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad time status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/session/start", nil, "")
	if body := decode(t, rec); body["source"] != "announcement" {
		t.Errorf("session response = %v", body)
	}
	if spoken := f.speech.Spoken(); len(spoken) != 1 || spoken[0].Text != "Please stand" {
		t.Errorf("spoken = %+v", spoken)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, true)
	f.do(t, http.MethodPost, "/api/prayers/y/play", nil, "")

	rec := f.do(t, http.MethodGet, "/metrics", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `prayerbell_plays_total{source="recording"} 1`) {
		t.Errorf("plays metric missing:\n%s", rec.Body)
	}
}
