package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/vidyalaya/prayerbell/prayer"
)

// Persister stores a clip somewhere permanent and returns its URL.
type Persister interface {
	Persist(ctx context.Context, schoolID, prayerID string, f File) (string, error)
}

// BlobStore keeps clips locally and hands out playable references. A pinned
// clip stays until it is unpinned.
type BlobStore interface {
	PutPinned(data []byte, contentType string) (string, error)
	Unpin(url string)
}

// State is the outcome of the background persist.
type State string

const (
	// StatePending means the clip is local and the persist is running.
	StatePending State = "pending"
	// StatePersisted means the prayer now points at the persisted URL.
	StatePersisted State = "persisted"
	// StateLocalOnly means the persist failed or no persister is configured;
	// the local reference stays playable.
	StateLocalOnly State = "local_only"
	// StateSuperseded means the persist finished after a newer upload
	// replaced the recording, so the prayer was left alone.
	StateSuperseded State = "superseded"
)

// Status describes the last upload of a prayer.
type Status struct {
	PrayerID     string    `json:"prayer_id"`
	FileName     string    `json:"file_name"`
	Size         int64     `json:"size"`
	LocalURL     string    `json:"local_url"`
	PersistedURL string    `json:"persisted_url,omitempty"`
	State        State     `json:"state"`
	Error        string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Uploader runs the upload contract against a catalog.
type Uploader struct {
	catalog   *prayer.Catalog
	blobs     BlobStore
	persister Persister

	mu       sync.Mutex
	statuses map[string]Status
	onResult []func(Status)
	wg       sync.WaitGroup

	logger *log.Logger
}

// NewUploader creates an uploader. persister may be nil, in which case clips
// stay local.
func NewUploader(catalog *prayer.Catalog, blobs BlobStore, persister Persister) *Uploader {
	return &Uploader{
		catalog:   catalog,
		blobs:     blobs,
		persister: persister,
		statuses:  make(map[string]Status),
		logger:    log.WithPrefix("upload"),
	}
}

// OnResult registers a callback for every finished persist.
func (u *Uploader) OnResult(fn func(Status)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onResult = append(u.onResult, fn)
}

// Upload validates f, makes it playable right away through a local
// reference and starts persisting it. Nothing is mutated when validation
// fails.
func (u *Uploader) Upload(ctx context.Context, schoolID, prayerID string, f File) (Status, error) {
	if err := Validate(f); err != nil {
		return Status{}, err
	}
	p, err := u.catalog.Get(prayerID)
	if err != nil {
		return Status{}, err
	}

	local, err := u.blobs.PutPinned(f.Data, f.MediaType())
	if err != nil {
		return Status{}, fmt.Errorf("unable to keep %s locally: %w", f.Name, err)
	}
	if err := u.catalog.SetAudioURL(prayerID, local); err != nil {
		u.blobs.Unpin(local)
		return Status{}, err
	}
	// The replaced clip is no longer referenced by the catalog.
	if p.AudioURL != "" && p.AudioURL != local {
		u.blobs.Unpin(p.AudioURL)
	}

	st := Status{
		PrayerID:  prayerID,
		FileName:  f.Name,
		Size:      f.Size(),
		LocalURL:  local,
		State:     StatePending,
		UpdatedAt: time.Now(),
	}
	if u.persister == nil {
		st.State = StateLocalOnly
	}
	u.mu.Lock()
	u.statuses[prayerID] = st
	u.mu.Unlock()
	u.logger.Info("Recording attached", "prayer", prayerID, "file", f.Name, "size", humanize.Bytes(uint64(f.Size())))

	if u.persister != nil {
		u.wg.Add(1)
		go u.persist(context.WithoutCancel(ctx), schoolID, st, f)
	}
	return st, nil
}

func (u *Uploader) persist(ctx context.Context, schoolID string, st Status, f File) {
	defer u.wg.Done()

	url, err := u.persister.Persist(ctx, schoolID, st.PrayerID, f)
	if err != nil {
		st.State = StateLocalOnly
		st.Error = err.Error()
		u.logger.Warn("Persist failed, keeping local recording", "prayer", st.PrayerID, "err", err)
	} else {
		st.PersistedURL = url
		swapped, cerr := u.catalog.CompareAndSetAudioURL(st.PrayerID, st.LocalURL, url)
		switch {
		case cerr != nil:
			st.State = StateLocalOnly
			st.Error = cerr.Error()
		case swapped:
			st.State = StatePersisted
			u.logger.Info("Recording persisted", "prayer", st.PrayerID, "url", url)
		default:
			st.State = StateSuperseded
			u.logger.Debug("Recording replaced before persist finished", "prayer", st.PrayerID)
		}
	}
	// A local_only clip is still what the prayer plays, so it stays pinned.
	if st.State != StateLocalOnly {
		u.blobs.Unpin(st.LocalURL)
	}
	st.UpdatedAt = time.Now()

	u.mu.Lock()
	if cur, ok := u.statuses[st.PrayerID]; ok && cur.LocalURL == st.LocalURL {
		u.statuses[st.PrayerID] = st
	}
	fns := u.onResult
	u.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Status returns the last upload status of a prayer.
func (u *Uploader) Status(prayerID string) (Status, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	st, ok := u.statuses[prayerID]
	return st, ok
}

// Wait blocks until every running persist has finished.
func (u *Uploader) Wait() {
	u.wg.Wait()
}
