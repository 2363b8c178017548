package spots

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
)

// SpotRepository is the single facade the HTTP layer talks to. It merges
// the three spot sources into one cached view, answers nearby queries,
// serializes rating folds per spot, and owns the marker color assigner.
type SpotRepository struct {
	store   GeoStore
	bundled []SpotRecord
	colors  *ColorAssigner

	// gen tags every Refresh call at issue time. A response may update the
	// view only while its call is still the newest issued; any refresh
	// issued meanwhile supersedes it, even before that refresh responds.
	gen atomic.Uint64

	mu            sync.RWMutex // guards snapshot, lastPersisted, pending
	snapshot      []SpotRecord
	lastPersisted []SpotRecord
	pending       []SpotRecord

	locksMu   sync.Mutex
	spotLocks map[string]*sync.Mutex
}

func NewSpotRepository(store GeoStore, bundled []SpotRecord) *SpotRepository {
	r := &SpotRepository{
		store:     store,
		bundled:   bundled,
		colors:    NewColorAssigner(),
		spotLocks: make(map[string]*sync.Mutex),
	}
	r.snapshot = Merge(bundled, nil, nil)
	return r
}

// Refresh fetches the persisted set and rebuilds the merged view. It never
// fails from the caller's perspective: a store failure degrades to the
// last known persisted set (bundled + pending on a cold start), and a
// response that lost the race to a newer refresh is discarded in favor of
// the current snapshot.
func (r *SpotRepository) Refresh(ctx context.Context) []SpotRecord {
	gen := r.gen.Add(1)

	persisted, err := r.store.FindAll(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen.Load() {
		// A newer refresh has been issued; this response is stale whether or
		// not that refresh has responded yet.
		return copyRecords(r.snapshot)
	}

	if err != nil {
		log.Printf("refresh degraded to cached data: %v", err)
		r.snapshot = Merge(r.bundled, r.lastPersisted, r.pending)
		return copyRecords(r.snapshot)
	}

	r.lastPersisted = persisted

	// A pending spot whose id is now persisted has been confirmed; drop it.
	confirmed := make(map[string]struct{}, len(persisted))
	for _, s := range persisted {
		confirmed[s.ID] = struct{}{}
	}
	kept := r.pending[:0]
	for _, s := range r.pending {
		if _, ok := confirmed[s.ID]; !ok {
			kept = append(kept, s)
		}
	}
	r.pending = kept

	r.snapshot = Merge(r.bundled, persisted, r.pending)
	return copyRecords(r.snapshot)
}

// Snapshot returns the current merged view without touching the store.
func (r *SpotRepository) Snapshot() []SpotRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyRecords(r.snapshot)
}

// FilterByLabel filters the current merged view by category label.
func (r *SpotRepository) FilterByLabel(label string) []SpotRecord {
	return FilterByLabel(r.Snapshot(), label)
}

// Nearby delegates to the geo index. Bundled and pending spots are not
// geospatially indexed and never appear here. A transport failure degrades
// to an empty list; nearby results are advisory, not load-bearing.
func (r *SpotRepository) Nearby(ctx context.Context, lat, lng, radiusMeters float64) []SpotRecord {
	recs, err := r.store.FindNear(ctx, lat, lng, radiusMeters)
	if err != nil {
		log.Printf("nearby query degraded to empty result: %v", err)
		return []SpotRecord{}
	}
	return recs
}

// SubmitRating folds one submission into a spot's consensus. Submissions
// for the same spot are serialized through a per-spot mutex so the
// read-fold-write never interleaves in-process; the sample-count predicate
// in UpdateRatings backstops concurrent writers elsewhere, and one
// conflicted write is retried before surfacing ErrConflict.
func (r *SpotRepository) SubmitRating(ctx context.Context, id string, submitted Ratings) (SpotRecord, error) {
	if r.isBundled(id) {
		return SpotRecord{}, ErrForbidden
	}

	lock := r.spotLock(id)
	lock.Lock()
	defer lock.Unlock()

	updated, err := r.foldOnce(ctx, id, submitted)
	if errors.Is(err, ErrConflict) {
		updated, err = r.foldOnce(ctx, id, submitted)
	}
	if err != nil {
		return SpotRecord{}, err
	}

	r.replaceInView(updated)
	return updated, nil
}

func (r *SpotRepository) foldOnce(ctx context.Context, id string, submitted Ratings) (SpotRecord, error) {
	current, err := r.store.FindByID(ctx, id)
	if err != nil {
		return SpotRecord{}, err
	}
	folded, err := Fold(current, submitted)
	if err != nil {
		return SpotRecord{}, err
	}
	return r.store.UpdateRatings(ctx, id, folded.Ratings, current.RatingSampleCount)
}

// AddComment appends a comment to a persisted spot. Blank authors default
// to Anonymous; text is trimmed and must be non-empty.
func (r *SpotRepository) AddComment(ctx context.Context, id, text, author string) (SpotRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SpotRecord{}, &ValidationError{Field: "text", Reason: "required"}
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = "Anonymous"
	}
	if r.isBundled(id) {
		return SpotRecord{}, ErrForbidden
	}

	updated, err := r.store.AppendComment(ctx, id, Comment{Text: text, Author: author})
	if err != nil {
		return SpotRecord{}, err
	}

	r.replaceInView(updated)
	return updated, nil
}

// AddSpot persists a new submission. The created record is also tracked as
// a pending copy so it shows on the map immediately; the next successful
// Refresh sees the persisted row and supersedes the pending one.
func (r *SpotRepository) AddSpot(ctx context.Context, in NewSpotInput) (SpotRecord, error) {
	created, err := r.store.Insert(ctx, in)
	if err != nil {
		return SpotRecord{}, err
	}

	pendingCopy := created
	pendingCopy.Provenance = ProvenancePending

	r.mu.Lock()
	r.pending = append(r.pending, pendingCopy)
	r.snapshot = Merge(r.bundled, r.lastPersisted, r.pending)
	r.mu.Unlock()

	return created, nil
}

// DeleteSpot removes a persisted spot. Bundled spots are never deletable.
// A spot that only exists as a local pending copy is dropped without a
// store round-trip.
func (r *SpotRepository) DeleteSpot(ctx context.Context, id string) error {
	if r.isBundled(id) {
		return ErrForbidden
	}

	if r.dropPendingOnly(id) {
		return nil
	}

	if err := r.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	r.lastPersisted = removeByID(r.lastPersisted, id)
	r.pending = removeByID(r.pending, id)
	r.snapshot = Merge(r.bundled, r.lastPersisted, r.pending)
	r.mu.Unlock()
	return nil
}

// ColorFor resolves the marker color for a category label.
func (r *SpotRepository) ColorFor(label string) string {
	return r.colors.ColorFor(label)
}

// ColorLegend returns every color assignment made so far.
func (r *SpotRepository) ColorLegend() map[string]string {
	return r.colors.Legend()
}

func (r *SpotRepository) isBundled(id string) bool {
	for _, s := range r.bundled {
		if s.ID == id {
			return true
		}
	}
	return false
}

// dropPendingOnly removes id from the pending list if it is not known to
// be persisted. Reports whether the delete was satisfied locally.
func (r *SpotRepository) dropPendingOnly(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.lastPersisted {
		if s.ID == id {
			return false
		}
	}

	before := len(r.pending)
	r.pending = removeByID(r.pending, id)
	if len(r.pending) == before {
		return false
	}
	r.snapshot = Merge(r.bundled, r.lastPersisted, r.pending)
	return true
}

// replaceInView swaps the updated record into the cached view so /all
// reflects a fold or comment without waiting for the next refresh. The
// pending copy is updated too; otherwise a degraded refresh would re-merge
// the pre-fold pending record and the view would regress until the next
// successful refresh.
func (r *SpotRepository) replaceInView(updated SpotRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.lastPersisted {
		if r.lastPersisted[i].ID == updated.ID {
			r.lastPersisted[i] = updated
		}
	}
	for i := range r.pending {
		if r.pending[i].ID == updated.ID {
			pendingCopy := updated
			pendingCopy.Provenance = ProvenancePending
			r.pending[i] = pendingCopy
		}
	}
	for i := range r.snapshot {
		if r.snapshot[i].ID == updated.ID {
			r.snapshot[i] = updated
		}
	}
}

func (r *SpotRepository) spotLock(id string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	if l, ok := r.spotLocks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	r.spotLocks[id] = l
	return l
}

func copyRecords(in []SpotRecord) []SpotRecord {
	out := make([]SpotRecord, len(in))
	copy(out, in)
	return out
}

func removeByID(list []SpotRecord, id string) []SpotRecord {
	out := list[:0]
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
