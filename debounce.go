package umgram

import (
	"sync"
	"time"
)

// patchDebounce is the quiet period after the last mutation before a PATCH
// is sent. All mutations to the same circle inside the window collapse into
// a single request.
const patchDebounce = 400 * time.Millisecond

// patchQueue coalesces per-circle field updates into one debounced PATCH.
// Each circle id owns at most one timer; scheduling while a timer is armed
// merges the new fields into the pending patch and restarts the window.
type patchQueue struct {
	mu    sync.Mutex
	delay time.Duration
	flush func(id string, patch *CirclePatch)

	pending map[string]*pendingPatch
}

type pendingPatch struct {
	patch *CirclePatch
	timer *time.Timer
}

func newPatchQueue(delay time.Duration, flush func(id string, patch *CirclePatch)) *patchQueue {
	if delay <= 0 {
		delay = patchDebounce
	}
	return &patchQueue{
		delay:   delay,
		flush:   flush,
		pending: make(map[string]*pendingPatch),
	}
}

// Schedule merges patch into the pending update for id and restarts the
// debounce window. Later non-nil fields win over earlier ones.
func (q *patchQueue) Schedule(id string, patch *CirclePatch) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.pending[id]
	if !ok {
		p = &pendingPatch{patch: &CirclePatch{}}
		q.pending[id] = p
	} else {
		p.timer.Stop()
	}
	mergePatch(p.patch, patch)

	p.timer = time.AfterFunc(q.delay, func() {
		q.fire(id)
	})
}

func (q *patchQueue) fire(id string) {
	q.mu.Lock()
	p, ok := q.pending[id]
	if !ok {
		return // canceled or rekeyed after the timer fired
	}
	delete(q.pending, id)
	patch := p.patch
	q.mu.Unlock()

	q.flush(id, patch)
}

// Cancel drops any pending patch for id without sending it.
func (q *patchQueue) Cancel(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.pending[id]; ok {
		p.timer.Stop()
		delete(q.pending, id)
	}
}

// Rekey moves a pending patch from oldID to newID, keeping its timer and
// accumulated fields. Used when a temporary id is confirmed mid-window.
func (q *patchQueue) Rekey(oldID, newID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[oldID]
	if !ok {
		return
	}
	delete(q.pending, oldID)
	// A timer for the old id may still fire; fire() finds nothing under the
	// old key and returns. The moved entry gets a fresh timer under newID.
	p.timer.Stop()
	p.timer = time.AfterFunc(q.delay, func() {
		q.fire(newID)
	})
	q.pending[newID] = p
}

// Has reports whether a patch is pending for id.
func (q *patchQueue) Has(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[id]
	return ok
}

// Stop cancels every pending patch without sending.
func (q *patchQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, p := range q.pending {
		p.timer.Stop()
		delete(q.pending, id)
	}
}

func mergePatch(dst, src *CirclePatch) {
	if src == nil {
		return
	}
	if src.Name != nil {
		dst.Name = src.Name
	}
	if src.Lat != nil {
		dst.Lat = src.Lat
	}
	if src.Lng != nil {
		dst.Lng = src.Lng
	}
	if src.Radius != nil {
		dst.Radius = src.Radius
	}
}
