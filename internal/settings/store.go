// Package settings keeps assembly schedules per school. Saves commit to
// memory at once and are reconciled with the backend afterwards; the outcome
// of the reconciliation only ever flips the Persisted flag.
package settings

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"

	"github.com/vidyalaya/prayerbell/prayer"
)

// Remote is the backend side of the settings.
type Remote interface {
	GetSchedule(ctx context.Context, schoolID string) (prayer.Schedule, error)
	SaveSchedule(ctx context.Context, schoolID string, s prayer.Schedule) error
}

// Snapshot is the committed schedule of a school and its sync state.
type Snapshot struct {
	SchoolID  string          `json:"school_id"`
	Schedule  prayer.Schedule `json:"schedule"`
	Revision  uint64          `json:"revision"`
	Persisted bool            `json:"persisted"`
	SyncError string          `json:"sync_error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store holds committed schedules in memory.
type Store struct {
	remote Remote
	cache  *gocache.Cache

	mu     sync.Mutex
	rev    uint64
	onSync []func(schoolID string, err error)

	// syncMu orders backend writes so the newest revision is written last.
	syncMu sync.Mutex
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewStore creates a store. remote may be nil; saves then stay local.
func NewStore(remote Remote) *Store {
	return &Store{
		remote: remote,
		cache:  gocache.New(gocache.NoExpiration, 0),
		logger: log.WithPrefix("settings"),
	}
}

// OnSync registers a callback for every finished reconciliation.
func (s *Store) OnSync(fn func(schoolID string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSync = append(s.onSync, fn)
}

// Save commits sched for schoolID and returns the committed snapshot. The
// commit always succeeds; reconciliation runs in the background.
func (s *Store) Save(ctx context.Context, schoolID string, sched prayer.Schedule) Snapshot {
	s.mu.Lock()
	s.rev++
	snap := Snapshot{
		SchoolID:  schoolID,
		Schedule:  sched.Clone(),
		Revision:  s.rev,
		UpdatedAt: time.Now(),
	}
	s.cache.Set(schoolID, snap, gocache.NoExpiration)
	s.mu.Unlock()

	s.logger.Info("Schedule saved locally", "school", schoolID, "revision", snap.Revision)
	if s.remote != nil {
		s.wg.Add(1)
		go s.reconcile(context.WithoutCancel(ctx), snap)
	}
	return cloneSnapshot(snap)
}

func (s *Store) reconcile(ctx context.Context, snap Snapshot) {
	defer s.wg.Done()

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if !s.isCurrent(snap) {
		// A newer commit has its own reconciliation queued.
		return
	}

	err := s.remote.SaveSchedule(ctx, snap.SchoolID, snap.Schedule)

	s.mu.Lock()
	if cur, ok := s.lookupLocked(snap.SchoolID); ok && cur.Revision == snap.Revision {
		cur.Persisted = err == nil
		cur.SyncError = ""
		if err != nil {
			cur.SyncError = err.Error()
		}
		s.cache.Set(snap.SchoolID, cur, gocache.NoExpiration)
	}
	fns := s.onSync
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Schedule sync failed, keeping local copy", "school", snap.SchoolID, "revision", snap.Revision, "err", err)
	} else {
		s.logger.Debug("Schedule persisted", "school", snap.SchoolID, "revision", snap.Revision)
	}
	for _, fn := range fns {
		fn(snap.SchoolID, err)
	}
}

// Get returns the committed schedule of schoolID. On a miss it is fetched
// from the backend; if that fails the default schedule is committed locally.
func (s *Store) Get(ctx context.Context, schoolID string) Snapshot {
	s.mu.Lock()
	cur, ok := s.lookupLocked(schoolID)
	s.mu.Unlock()
	if ok {
		return cloneSnapshot(cur)
	}

	snap := Snapshot{SchoolID: schoolID, UpdatedAt: time.Now()}
	if s.remote == nil {
		snap.Schedule = prayer.DefaultSchedule()
	} else if sched, err := s.remote.GetSchedule(ctx, schoolID); err != nil {
		s.logger.Warn("Unable to fetch schedule, using defaults", "school", schoolID, "err", err)
		snap.Schedule = prayer.DefaultSchedule()
		snap.SyncError = err.Error()
	} else {
		snap.Schedule = sched
		snap.Persisted = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A Save may have landed while fetching; it wins.
	if cur, ok := s.lookupLocked(schoolID); ok {
		return cloneSnapshot(cur)
	}
	s.rev++
	snap.Revision = s.rev
	s.cache.Set(schoolID, snap, gocache.NoExpiration)
	return cloneSnapshot(snap)
}

// Wait blocks until every running reconciliation has finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) isCurrent(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.lookupLocked(snap.SchoolID)
	return ok && cur.Revision == snap.Revision
}

func (s *Store) lookupLocked(schoolID string) (Snapshot, bool) {
	v, ok := s.cache.Get(schoolID)
	if !ok {
		return Snapshot{}, false
	}
	return v.(Snapshot), true
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Schedule = s.Schedule.Clone()
	return s
}
