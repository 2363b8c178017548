package spots

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeStore implements GeoStore in memory without any database dependency.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]SpotRecord
	nearby  []SpotRecord

	// failAll, when set, makes FindAll return this error.
	failAll error

	// findAllQueue, when non-empty, overrides FindAll one call at a time.
	// Lets tests block a refresh response behind a channel.
	findAllQueue []func() ([]SpotRecord, error)

	// conflictsLeft makes the next n UpdateRatings calls fail with ErrConflict.
	conflictsLeft int
}

func newFakeStore(recs ...SpotRecord) *fakeStore {
	f := &fakeStore{records: make(map[string]SpotRecord)}
	for _, r := range recs {
		r.Provenance = ProvenancePersisted
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeStore) list() []SpotRecord {
	out := make([]SpotRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	return out
}

func (f *fakeStore) Insert(ctx context.Context, in NewSpotInput) (SpotRecord, error) {
	if err := in.Validate(); err != nil {
		return SpotRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := SpotRecord{
		ID:                "gen-" + in.Name,
		Name:              in.Name,
		Description:       in.Description,
		CategoryLabel:     in.CategoryLabel,
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		Ratings:           clampRatings(in.Ratings),
		RatingSampleCount: 1,
		Provenance:        ProvenancePersisted,
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) FindAll(ctx context.Context) ([]SpotRecord, error) {
	f.mu.Lock()
	var fn func() ([]SpotRecord, error)
	if len(f.findAllQueue) > 0 {
		fn = f.findAllQueue[0]
		f.findAllQueue = f.findAllQueue[1:]
	}
	failAll := f.failAll
	f.mu.Unlock()

	if fn != nil {
		return fn()
	}
	if failAll != nil {
		return nil, failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(), nil
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (SpotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return SpotRecord{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) FindNear(ctx context.Context, lat, lng, maxDistanceMeters float64) ([]SpotRecord, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	return f.nearby, nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return ErrNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeStore) UpdateRatings(ctx context.Context, id string, r Ratings, expectedCount int) (SpotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return SpotRecord{}, ErrNotFound
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return SpotRecord{}, ErrConflict
	}
	if rec.RatingSampleCount != expectedCount {
		return SpotRecord{}, ErrConflict
	}
	rec.Ratings = r
	rec.RatingSampleCount = expectedCount + 1
	f.records[id] = rec
	return rec, nil
}

func (f *fakeStore) AppendComment(ctx context.Context, id string, c Comment) (SpotRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return SpotRecord{}, ErrNotFound
	}
	rec.Comments = append(rec.Comments, c)
	f.records[id] = rec
	return rec, nil
}

func testBundled() []SpotRecord {
	return []SpotRecord{
		{ID: "bundled-1", Name: "Temple", CategoryLabel: "Serene", RatingSampleCount: 1, Provenance: ProvenanceBundled},
	}
}

// TestRefresh_MergesAllSources verifies a successful refresh returns
// bundled spots first, then the persisted set.
func TestRefresh_MergesAllSources(t *testing.T) {
	store := newFakeStore(spot("p1", "Creative", ProvenancePersisted))
	repo := NewSpotRepository(store, testBundled())

	got := repo.Refresh(context.Background())

	if len(got) != 2 {
		t.Fatalf("expected 2 spots, got %d", len(got))
	}
	if got[0].ID != "bundled-1" || got[1].ID != "p1" {
		t.Errorf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

// TestRefresh_DegradesOnTransportFailure verifies the caller still gets a
// renderable list when the store is unreachable, and that a previously
// fetched persisted set is kept.
func TestRefresh_DegradesOnTransportFailure(t *testing.T) {
	store := newFakeStore(spot("p1", "Creative", ProvenancePersisted))
	repo := NewSpotRepository(store, testBundled())

	repo.Refresh(context.Background()) // seeds lastPersisted
	store.failAll = &TransportError{Op: "find all", Err: errors.New("connection refused")}

	got := repo.Refresh(context.Background())

	if len(got) != 2 {
		t.Fatalf("expected bundled + last-known persisted, got %d spots", len(got))
	}
	if got[1].ID != "p1" {
		t.Errorf("expected last-known persisted spot p1, got %s", got[1].ID)
	}
}

// TestRefresh_ColdStartFailureFallsBackToBundled verifies the first
// refresh ever, failing, still returns the bundled list.
func TestRefresh_ColdStartFailureFallsBackToBundled(t *testing.T) {
	store := newFakeStore()
	store.failAll = &TransportError{Op: "find all", Err: errors.New("timeout")}
	repo := NewSpotRepository(store, testBundled())

	got := repo.Refresh(context.Background())

	if len(got) != 1 || got[0].ID != "bundled-1" {
		t.Errorf("expected only the bundled spot, got %v", got)
	}
}

// TestRefresh_StaleResponseDiscarded verifies an out-of-order response
// race: a refresh whose response arrives after a newer refresh has
// completed must not overwrite the newer state.
func TestRefresh_StaleResponseDiscarded(t *testing.T) {
	store := newFakeStore()
	repo := NewSpotRepository(store, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	staleResult := []SpotRecord{spot("old", "Serene", ProvenancePersisted)}

	store.findAllQueue = []func() ([]SpotRecord, error){
		func() ([]SpotRecord, error) {
			close(entered)
			<-release
			return staleResult, nil
		},
	}

	firstDone := make(chan []SpotRecord)
	go func() {
		firstDone <- repo.Refresh(context.Background())
	}()

	<-entered
	// Second refresh completes while the first is still in flight.
	store.records["new"] = spot("new", "Creative", ProvenancePersisted)
	second := repo.Refresh(context.Background())
	if len(second) != 1 || second[0].ID != "new" {
		t.Fatalf("expected second refresh to see the new spot, got %v", second)
	}

	close(release)
	first := <-firstDone

	// The stale response must be discarded: both the first caller's result
	// and the cached snapshot reflect the newer refresh.
	if len(first) != 1 || first[0].ID != "new" {
		t.Errorf("stale response leaked to the first caller: %v", first)
	}
	snap := repo.Snapshot()
	if len(snap) != 1 || snap[0].ID != "new" {
		t.Errorf("stale response overwrote the snapshot: %v", snap)
	}
}

// TestRefresh_SupersededResponseDiscarded verifies issue-time cancellation:
// once a newer refresh has been issued, the older call's response must not
// update visible state even if it arrives first, while the newer one is
// still in flight.
func TestRefresh_SupersededResponseDiscarded(t *testing.T) {
	store := newFakeStore()
	repo := NewSpotRepository(store, nil)

	firstEntered := make(chan struct{})
	firstRelease := make(chan struct{})
	secondEntered := make(chan struct{})
	secondRelease := make(chan struct{})

	store.findAllQueue = []func() ([]SpotRecord, error){
		func() ([]SpotRecord, error) {
			close(firstEntered)
			<-firstRelease
			return []SpotRecord{spot("old", "Serene", ProvenancePersisted)}, nil
		},
		func() ([]SpotRecord, error) {
			close(secondEntered)
			<-secondRelease
			return []SpotRecord{spot("new", "Creative", ProvenancePersisted)}, nil
		},
	}

	firstDone := make(chan []SpotRecord)
	go func() {
		firstDone <- repo.Refresh(context.Background())
	}()
	<-firstEntered

	secondDone := make(chan []SpotRecord)
	go func() {
		secondDone <- repo.Refresh(context.Background())
	}()
	<-secondEntered

	// The older response lands while the newer refresh is still pending.
	close(firstRelease)
	first := <-firstDone

	if len(first) != 0 {
		t.Errorf("superseded response leaked to its caller: %v", first)
	}
	if snap := repo.Snapshot(); len(snap) != 0 {
		t.Errorf("superseded response updated visible state: %v", snap)
	}

	close(secondRelease)
	second := <-secondDone

	if len(second) != 1 || second[0].ID != "new" {
		t.Errorf("expected the newest refresh to apply, got %v", second)
	}
	if snap := repo.Snapshot(); len(snap) != 1 || snap[0].ID != "new" {
		t.Errorf("expected snapshot to hold the newest result, got %v", snap)
	}
}

// TestRefresh_ReconcilesPending verifies a pending spot is superseded by
// its persisted copy on the next successful refresh.
func TestRefresh_ReconcilesPending(t *testing.T) {
	store := newFakeStore()
	repo := NewSpotRepository(store, nil)

	created, err := repo.AddSpot(context.Background(), NewSpotInput{
		Name: "Rooftop", Description: "d", CategoryLabel: "Romantic",
		Latitude: 26.2, Longitude: 78.2,
	})
	if err != nil {
		t.Fatalf("AddSpot failed: %v", err)
	}

	// Before any refresh the spot shows as a pending copy.
	snap := repo.Snapshot()
	if len(snap) != 1 || snap[0].Provenance != ProvenancePending {
		t.Fatalf("expected one pending spot before refresh, got %v", snap)
	}

	got := repo.Refresh(context.Background())
	if len(got) != 1 {
		t.Fatalf("expected 1 spot after refresh, got %d", len(got))
	}
	if got[0].ID != created.ID || got[0].Provenance != ProvenancePersisted {
		t.Errorf("expected persisted copy to supersede pending, got %+v", got[0])
	}
}

// TestSubmitRating_SerializesConcurrentFolds hammers one spot from many
// goroutines and verifies no update is lost: the final sample count and
// mean match the batch law exactly.
func TestSubmitRating_SerializesConcurrentFolds(t *testing.T) {
	const writers = 40
	store := newFakeStore(SpotRecord{ID: "s1", Name: "Spot", RatingSampleCount: 1})
	repo := NewSpotRepository(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.SubmitRating(context.Background(), "s1", Ratings{Uniqueness: 5, Vibe: 5, Safety: 5, Crowd: 5})
			if err != nil {
				t.Errorf("SubmitRating failed: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := store.FindByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if final.RatingSampleCount != writers+1 {
		t.Errorf("expected sample count %d, got %d", writers+1, final.RatingSampleCount)
	}
	want := (0.0 + 5*writers) / float64(writers+1)
	if math.Abs(final.Ratings.Vibe-want) > 1e-6 {
		t.Errorf("expected mean %v, got %v", want, final.Ratings.Vibe)
	}
}

// TestSubmitRating_RetriesConflictOnce verifies a single optimistic-lock
// conflict is retried transparently, but a second one surfaces.
func TestSubmitRating_RetriesConflictOnce(t *testing.T) {
	store := newFakeStore(SpotRecord{ID: "s1", RatingSampleCount: 1})
	store.conflictsLeft = 1
	repo := NewSpotRepository(store, nil)

	updated, err := repo.SubmitRating(context.Background(), "s1", Ratings{Uniqueness: 4, Vibe: 4, Safety: 4, Crowd: 4})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if updated.RatingSampleCount != 2 {
		t.Errorf("expected sample count 2, got %d", updated.RatingSampleCount)
	}

	store.conflictsLeft = 2
	_, err = repo.SubmitRating(context.Background(), "s1", Ratings{Uniqueness: 4, Vibe: 4, Safety: 4, Crowd: 4})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict after second conflict, got %v", err)
	}
}

// TestSubmitRating_Guards verifies bundled spots reject folds and unknown
// ids report not-found.
func TestSubmitRating_Guards(t *testing.T) {
	repo := NewSpotRepository(newFakeStore(), testBundled())
	valid := Ratings{Uniqueness: 3, Vibe: 3, Safety: 3, Crowd: 3}

	if _, err := repo.SubmitRating(context.Background(), "bundled-1", valid); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for bundled spot, got %v", err)
	}
	if _, err := repo.SubmitRating(context.Background(), "ghost", valid); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

// TestDeleteSpot_Guards verifies bundled spots are undeletable, persisted
// spots disappear from the next refresh, and unknown ids report not-found.
func TestDeleteSpot_Guards(t *testing.T) {
	store := newFakeStore(spot("p1", "Creative", ProvenancePersisted))
	repo := NewSpotRepository(store, testBundled())
	repo.Refresh(context.Background())

	if err := repo.DeleteSpot(context.Background(), "bundled-1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for bundled spot, got %v", err)
	}

	if err := repo.DeleteSpot(context.Background(), "p1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	for _, s := range repo.Refresh(context.Background()) {
		if s.ID == "p1" {
			t.Error("deleted spot still present after refresh")
		}
	}

	if err := repo.DeleteSpot(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestAddComment_ValidationAndDefaults verifies trimming, the empty-text
// rejection, and the Anonymous author default.
func TestAddComment_ValidationAndDefaults(t *testing.T) {
	store := newFakeStore(SpotRecord{ID: "s1", RatingSampleCount: 1})
	repo := NewSpotRepository(store, nil)

	_, err := repo.AddComment(context.Background(), "s1", "   ", "Asha")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for blank text, got %v", err)
	}

	updated, err := repo.AddComment(context.Background(), "s1", "  lovely at dusk  ", "")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if len(updated.Comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(updated.Comments))
	}
	c := updated.Comments[0]
	if c.Text != "lovely at dusk" {
		t.Errorf("expected trimmed text, got %q", c.Text)
	}
	if c.Author != "Anonymous" {
		t.Errorf("expected Anonymous default, got %q", c.Author)
	}
}

// TestSubmitRating_UpdatesPendingCopy verifies a fold on a spot still
// tracked as pending carries into the pending copy, so a degraded refresh
// re-merging pending records does not roll the view back to the pre-fold
// state.
func TestSubmitRating_UpdatesPendingCopy(t *testing.T) {
	store := newFakeStore()
	repo := NewSpotRepository(store, nil)

	created, err := repo.AddSpot(context.Background(), NewSpotInput{
		Name: "Trail", Description: "d", CategoryLabel: "Creative",
		Latitude: 26.2, Longitude: 78.2,
	})
	if err != nil {
		t.Fatalf("AddSpot failed: %v", err)
	}

	if _, err := repo.SubmitRating(context.Background(), created.ID, Ratings{Uniqueness: 5, Vibe: 5, Safety: 5, Crowd: 5}); err != nil {
		t.Fatalf("SubmitRating failed: %v", err)
	}

	// No successful refresh has happened, so a degraded one falls back to
	// the pending copy.
	store.failAll = &TransportError{Op: "find all", Err: errors.New("down")}
	got := repo.Refresh(context.Background())

	if len(got) != 1 {
		t.Fatalf("expected 1 spot, got %d", len(got))
	}
	if got[0].RatingSampleCount != 2 {
		t.Errorf("degraded refresh rolled back the fold: sample count %d", got[0].RatingSampleCount)
	}
	if got[0].Provenance != ProvenancePending {
		t.Errorf("expected pending provenance to be preserved, got %q", got[0].Provenance)
	}
}

// TestNearby_DegradesOnTransportFailure verifies nearby absorbs transport
// failures into an empty list.
func TestNearby_DegradesOnTransportFailure(t *testing.T) {
	store := newFakeStore()
	store.nearby = []SpotRecord{spot("p1", "Creative", ProvenancePersisted)}
	repo := NewSpotRepository(store, nil)

	if got := repo.Nearby(context.Background(), 26.2, 78.2, 5000); len(got) != 1 {
		t.Fatalf("expected 1 nearby spot, got %d", len(got))
	}

	store.failAll = &TransportError{Op: "find near", Err: errors.New("timeout")}
	got := repo.Nearby(context.Background(), 26.2, 78.2, 5000)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %v", got)
	}
}

// TestDeleteSpot_PendingOnlyHandledLocally verifies a spot that exists
// only as a pending copy is removed without reaching the store.
func TestDeleteSpot_PendingOnlyHandledLocally(t *testing.T) {
	store := newFakeStore()
	repo := NewSpotRepository(store, nil)

	created, err := repo.AddSpot(context.Background(), NewSpotInput{
		Name: "Trail", Description: "d", CategoryLabel: "Creative",
		Latitude: 26.2, Longitude: 78.2,
	})
	if err != nil {
		t.Fatalf("AddSpot failed: %v", err)
	}

	// Simulate the persisted row vanishing (e.g. rejected server-side)
	// while the pending copy lingers.
	if err := store.DeleteByID(context.Background(), created.ID); err != nil {
		t.Fatalf("fixture delete failed: %v", err)
	}

	if err := repo.DeleteSpot(context.Background(), created.ID); err != nil {
		t.Fatalf("expected local pending delete to succeed, got %v", err)
	}
	if snap := repo.Snapshot(); len(snap) != 0 {
		t.Errorf("expected empty snapshot, got %v", snap)
	}
}

// TestRefresh_ContextTimeout exercises the ctx plumbing: a store blocked
// past the deadline still leaves the repository serving cached data.
func TestRefresh_ContextTimeout(t *testing.T) {
	store := newFakeStore(spot("p1", "Creative", ProvenancePersisted))
	repo := NewSpotRepository(store, testBundled())
	repo.Refresh(context.Background())

	store.findAllQueue = []func() ([]SpotRecord, error){
		func() ([]SpotRecord, error) {
			time.Sleep(20 * time.Millisecond)
			return nil, &TransportError{Op: "find all", Err: context.DeadlineExceeded}
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	got := repo.Refresh(ctx)

	if len(got) != 2 {
		t.Errorf("expected cached bundled+persisted view, got %v", got)
	}
}
