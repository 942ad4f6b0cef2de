package settings_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vidyalaya/prayerbell/internal/settings"
	"github.com/vidyalaya/prayerbell/prayer"
)

// fakeRemote records saves. gate, when set, holds every save until a value
// is sent on it.
type fakeRemote struct {
	mu      sync.Mutex
	saved   []prayer.Schedule
	saveErr error
	getErr  error
	stored  *prayer.Schedule
	gate    chan error
	started chan struct{}
}

func (r *fakeRemote) GetSchedule(ctx context.Context, schoolID string) (prayer.Schedule, error) {
	if r.getErr != nil {
		return prayer.Schedule{}, r.getErr
	}
	return *r.stored, nil
}

func (r *fakeRemote) SaveSchedule(ctx context.Context, schoolID string, s prayer.Schedule) error {
	if r.started != nil {
		r.started <- struct{}{}
	}
	err := r.saveErr
	if r.gate != nil {
		err = <-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, s)
	return err
}

func schedule(time string) prayer.Schedule {
	s := prayer.DefaultSchedule()
	s.Time = time
	s.PrayersSequence = []string{"gayatri-mantra"}
	return s
}

func TestSave_CommitsImmediately(t *testing.T) {
	remote := &fakeRemote{gate: make(chan error)}
	store := settings.NewStore(remote)

	snap := store.Save(context.Background(), "school-7", schedule("07:30"))
	if snap.Persisted {
		t.Error("snapshot persisted before reconciliation")
	}
	if got := store.Get(context.Background(), "school-7"); got.Schedule.Time != "07:30" {
		t.Errorf("committed time = %q", got.Schedule.Time)
	}

	remote.gate <- nil
	store.Wait()

	got := store.Get(context.Background(), "school-7")
	if !got.Persisted || got.SyncError != "" {
		t.Errorf("after sync: %+v", got)
	}
}

func TestSave_FailureKeepsLocalCommit(t *testing.T) {
	remote := &fakeRemote{saveErr: errors.New("backend down")}
	store := settings.NewStore(remote)

	var synced []error
	var mu sync.Mutex
	store.OnSync(func(schoolID string, err error) {
		mu.Lock()
		synced = append(synced, err)
		mu.Unlock()
	})

	store.Save(context.Background(), "school-7", schedule("09:00"))
	store.Wait()

	got := store.Get(context.Background(), "school-7")
	if got.Schedule.Time != "09:00" {
		t.Errorf("local commit rolled back: %+v", got.Schedule)
	}
	if got.Persisted || got.SyncError != "backend down" {
		t.Errorf("sync state = %v %q", got.Persisted, got.SyncError)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(synced) != 1 || synced[0] == nil {
		t.Errorf("sync callbacks = %v", synced)
	}
}

func TestSave_StaleReconcileDoesNotMarkNewerCommit(t *testing.T) {
	remote := &fakeRemote{gate: make(chan error), started: make(chan struct{}, 4)}
	store := settings.NewStore(remote)

	store.Save(context.Background(), "school-7", schedule("07:00"))
	<-remote.started

	second := store.Save(context.Background(), "school-7", schedule("07:15"))

	// The first save completes while the second commit is current.
	remote.gate <- nil
	<-remote.started
	got := store.Get(context.Background(), "school-7")
	if got.Persisted {
		t.Error("older reconciliation marked the newer commit persisted")
	}
	if got.Revision != second.Revision {
		t.Errorf("revision = %d, want %d", got.Revision, second.Revision)
	}

	remote.gate <- errors.New("timeout")
	store.Wait()

	got = store.Get(context.Background(), "school-7")
	if got.Persisted || got.SyncError != "timeout" || got.Schedule.Time != "07:15" {
		t.Errorf("final snapshot = %+v", got)
	}
	remote.mu.Lock()
	defer remote.mu.Unlock()
	if last := remote.saved[len(remote.saved)-1]; last.Time != "07:15" {
		t.Errorf("backend last received %q", last.Time)
	}
}

func TestGet_FetchesFromRemote(t *testing.T) {
	stored := schedule("06:45")
	store := settings.NewStore(&fakeRemote{stored: &stored})

	got := store.Get(context.Background(), "school-7")
	if got.Schedule.Time != "06:45" || !got.Persisted {
		t.Errorf("Get = %+v", got)
	}
}

func TestGet_FallsBackToDefault(t *testing.T) {
	store := settings.NewStore(&fakeRemote{getErr: errors.New("unreachable")})

	got := store.Get(context.Background(), "school-7")
	if got.Schedule.Time != prayer.DefaultSchedule().Time {
		t.Errorf("time = %q, want default", got.Schedule.Time)
	}
	if got.Persisted || got.SyncError != "unreachable" {
		t.Errorf("sync state = %v %q", got.Persisted, got.SyncError)
	}
}

func TestStore_WithoutRemote(t *testing.T) {
	store := settings.NewStore(nil)
	if got := store.Get(context.Background(), "s"); got.Schedule.Time != "08:00" {
		t.Errorf("default time = %q", got.Schedule.Time)
	}
	snap := store.Save(context.Background(), "s", schedule("10:00"))
	store.Wait()
	if snap.Persisted {
		t.Error("saved without remote reported persisted")
	}
}

func TestSnapshotsDoNotShareSequence(t *testing.T) {
	store := settings.NewStore(nil)
	snap := store.Save(context.Background(), "s", schedule("10:00"))
	snap.Schedule.PrayersSequence[0] = "changed"

	if got := store.Get(context.Background(), "s"); got.Schedule.PrayersSequence[0] != "gayatri-mantra" {
		t.Error("caller mutated the committed schedule")
	}
}
