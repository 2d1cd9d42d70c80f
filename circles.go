package umgram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Radius bounds in meters. Values outside the range are clamped, never
// rejected.
const (
	MinRadius     = 10.0
	MaxRadius     = 20000.0
	DefaultRadius = 500.0
)

// DefaultCenter is used when no position is available (Riyadh).
var DefaultCenter = LatLng{Lat: 24.7136, Lng: 46.6753}

// ============================================================================
// CircleID
// ============================================================================

// CircleID identifies a circle across its lifecycle. A freshly created
// circle carries a pending id minted on the client; once the server accepts
// the create, the session swaps it for the confirmed numeric id everywhere
// (list, selection, queued patches).
type CircleID struct {
	value     string
	confirmed bool
}

// NewPendingID mints a client-side id: unix milliseconds plus a short random
// suffix. Never numeric, so it can never collide with a confirmed id.
func NewPendingID() CircleID {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return CircleID{
		value: strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + suffix,
	}
}

// ConfirmedID wraps a server-assigned id.
func ConfirmedID(v string) CircleID {
	return CircleID{value: v, confirmed: true}
}

// ParseCircleID classifies a raw id string. All-digit ids are confirmed
// server ids; anything else is treated as pending.
func ParseCircleID(s string) CircleID {
	if isNumeric(s) {
		return CircleID{value: s, confirmed: true}
	}
	return CircleID{value: s}
}

func (id CircleID) String() string  { return id.value }
func (id CircleID) Confirmed() bool { return id.confirmed }
func (id CircleID) IsZero() bool    { return id.value == "" }

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ============================================================================
// Circle
// ============================================================================

// Circle is the session's in-memory model of a geo circle.
type Circle struct {
	ID     CircleID
	Name   string
	Center LatLng
	Radius float64
}

func (c *Circle) snapshot() CircleSnapshot {
	return CircleSnapshot{
		ID:     c.ID.String(),
		Name:   c.Name,
		Center: c.Center,
		Radius: c.Radius,
	}
}

// ============================================================================
// Events
// ============================================================================

const (
	// EventCircleConfirmed fires after a pending circle receives its server
	// id. Data: "temp_id", "id".
	EventCircleConfirmed = "circle.confirmed"
	// EventPersistFailed fires when a create, patch, or delete fails on the
	// server. The in-memory state is never rolled back. Data: "id", "op",
	// "error".
	EventPersistFailed = "circle.persist_failed"
	// EventNotice carries informational messages such as snapshot fallback.
	// Data: "message".
	EventNotice = "notice"
)

// SessionEventHandler receives session events.
type SessionEventHandler func(event string, data map[string]interface{})

type sessionEmitter struct {
	mu       sync.RWMutex
	handlers map[string][]SessionEventHandler
}

func newSessionEmitter() *sessionEmitter {
	return &sessionEmitter{handlers: make(map[string][]SessionEventHandler)}
}

func (e *sessionEmitter) on(event string, handler SessionEventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

func (e *sessionEmitter) emit(event string, data map[string]interface{}) {
	e.mu.RLock()
	handlers := append([]SessionEventHandler(nil), e.handlers[event]...)
	e.mu.RUnlock()
	for _, h := range handlers {
		h(event, data)
	}
}

// ============================================================================
// CircleSession
// ============================================================================

// CircleSessionOptions tunes a session. The zero value gives production
// defaults.
type CircleSessionOptions struct {
	// Debounce overrides the patch quiet period.
	Debounce time.Duration
	// Timeout bounds each background server call.
	Timeout time.Duration
	// Logger receives dropped-write warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// CircleSession holds the user's circle list and keeps it in sync with the
// server optimistically: every mutation applies in memory and hits the local
// snapshot first, then reaches the server in the background. Server failures
// are reported through events and logged, never rolled back.
type CircleSession struct {
	mu       sync.Mutex
	circles  []*Circle
	selected CircleID

	geo     *GeoClient
	store   SnapshotStore
	queue   *patchQueue
	emitter *sessionEmitter
	logger  *slog.Logger
	timeout time.Duration
}

// NewCircleSession creates a session over the given geo client and snapshot
// store. store may be nil, which disables persistence.
func NewCircleSession(geo *GeoClient, store SnapshotStore, opts *CircleSessionOptions) *CircleSession {
	if opts == nil {
		opts = &CircleSessionOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &CircleSession{
		geo:     geo,
		store:   store,
		emitter: newSessionEmitter(),
		logger:  logger,
		timeout: timeout,
	}
	s.queue = newPatchQueue(opts.Debounce, s.flushPatch)
	return s
}

// On registers an event handler. Handlers run on the goroutine that triggers
// the event and must not call back into the session.
func (s *CircleSession) On(event string, handler SessionEventHandler) {
	s.emitter.on(event, handler)
}

// Load fetches the circle list from the server. On success the server list
// replaces the session state entirely and the snapshot is rewritten. On
// failure the session falls back to the last snapshot and returns the fetch
// error; callers can keep working locally.
func (s *CircleSession) Load(ctx context.Context) error {
	rows, err := s.geo.List(ctx)
	if err == nil {
		s.mu.Lock()
		s.circles = s.circles[:0]
		for i := range rows {
			s.circles = append(s.circles, circleFromRecord(&rows[i]))
		}
		s.reselectLocked()
		s.persistLocked()
		s.mu.Unlock()
		return nil
	}

	snap, loadErr := s.loadSnapshot()
	if loadErr != nil {
		s.logger.Warn("circle snapshot load failed", "error", loadErr)
		return err
	}
	s.mu.Lock()
	s.circles = s.circles[:0]
	for _, c := range snap {
		s.circles = append(s.circles, &Circle{
			ID:     ParseCircleID(c.ID),
			Name:   c.Name,
			Center: c.Center,
			Radius: clampRadius(c.Radius),
		})
	}
	s.reselectLocked()
	s.mu.Unlock()

	s.emitter.emit(EventNotice, map[string]interface{}{
		"message": "loaded circles from local snapshot",
	})
	return err
}

// Circles returns a copy of the current list in insertion order.
func (s *CircleSession) Circles() []Circle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Circle, 0, len(s.circles))
	for _, c := range s.circles {
		out = append(out, *c)
	}
	return out
}

// Get returns the circle with the given id, or nil.
func (s *CircleSession) Get(id CircleID) *Circle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(id); c != nil {
		copied := *c
		return &copied
	}
	return nil
}

// Select makes id the current circle. Selecting an unknown id clears the
// selection.
func (s *CircleSession) Select(id CircleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(id) != nil {
		s.selected = id
	} else {
		s.selected = CircleID{}
	}
}

// Selected returns the currently selected circle, or nil.
func (s *CircleSession) Selected() *Circle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(s.selected); c != nil {
		copied := *c
		return &copied
	}
	return nil
}

// Create adds a circle at center immediately under a pending id, selects it,
// and starts the server create in the background. The returned copy carries
// the pending id; subscribe to EventCircleConfirmed for the server id.
func (s *CircleSession) Create(name string, center LatLng, radius float64) Circle {
	if radius <= 0 {
		radius = DefaultRadius
	}
	c := &Circle{
		ID:     NewPendingID(),
		Name:   name,
		Center: center,
		Radius: clampRadius(radius),
	}

	s.mu.Lock()
	s.circles = append(s.circles, c)
	s.selected = c.ID
	s.persistLocked()
	created := *c
	s.mu.Unlock()

	go s.persistCreate(created.ID, created)
	return created
}

// SetCenter moves a circle. Applies locally at once and schedules the
// debounced server update.
func (s *CircleSession) SetCenter(id CircleID, center LatLng) {
	s.mutate(id, func(c *Circle) *CirclePatch {
		c.Center = center
		return &CirclePatch{Lat: Float(center.Lat), Lng: Float(center.Lng)}
	})
}

// SetRadius resizes a circle, clamping to the allowed range.
func (s *CircleSession) SetRadius(id CircleID, radius float64) {
	radius = clampRadius(radius)
	s.mutate(id, func(c *Circle) *CirclePatch {
		c.Radius = radius
		return &CirclePatch{Radius: Float(radius)}
	})
}

// SetName renames a circle.
func (s *CircleSession) SetName(id CircleID, name string) {
	s.mutate(id, func(c *Circle) *CirclePatch {
		c.Name = name
		return &CirclePatch{Name: Str(name)}
	})
}

func (s *CircleSession) mutate(id CircleID, apply func(*Circle) *CirclePatch) {
	s.mu.Lock()
	c := s.findLocked(id)
	if c == nil {
		s.mu.Unlock()
		return
	}
	patch := apply(c)
	id = c.ID
	s.persistLocked()
	s.mu.Unlock()

	s.queue.Schedule(id.String(), patch)
}

// Delete removes a circle locally, cancels any pending patch, and issues the
// server delete in the background when the circle was confirmed. A failed
// server delete does not resurrect the circle.
func (s *CircleSession) Delete(id CircleID) {
	s.mu.Lock()
	c := s.findLocked(id)
	if c == nil {
		s.mu.Unlock()
		return
	}
	id = c.ID
	s.removeLocked(id)
	if s.selected == id {
		s.selected = CircleID{}
	}
	s.persistLocked()
	s.mu.Unlock()

	s.queue.Cancel(id.String())
	if id.Confirmed() {
		go s.persistDelete(id)
	}
}

// Close cancels all pending server updates. In-memory and snapshot state
// stay as they are.
func (s *CircleSession) Close() {
	s.queue.Stop()
}

// ----------------------------------------------------------------------------
// Background persistence
// ----------------------------------------------------------------------------

func (s *CircleSession) persistCreate(tempID CircleID, c Circle) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rec, err := s.geo.Create(ctx, &CreateCircleOptions{
		Name:   c.Name,
		Lat:    c.Center.Lat,
		Lng:    c.Center.Lng,
		Radius: c.Radius,
	})
	if err != nil {
		s.logger.Warn("circle create failed, keeping local copy", "id", tempID.String(), "error", err)
		s.emitter.emit(EventPersistFailed, map[string]interface{}{
			"id": tempID.String(), "op": "create", "error": err.Error(),
		})
		return
	}

	serverID := ConfirmedID(rec.ID.String())

	s.mu.Lock()
	cur := s.findLocked(tempID)
	if cur == nil {
		// Deleted while the create was in flight. The server copy is now an
		// orphan; remove it.
		s.mu.Unlock()
		s.queue.Cancel(tempID.String())
		go s.persistDelete(serverID)
		return
	}
	cur.ID = serverID
	if s.selected == tempID {
		s.selected = serverID
	}
	center, radius := cur.Center, cur.Radius
	s.persistLocked()
	s.mu.Unlock()

	s.queue.Rekey(tempID.String(), serverID.String())
	s.emitter.emit(EventCircleConfirmed, map[string]interface{}{
		"temp_id": tempID.String(), "id": serverID.String(),
	})

	// The user may have moved or resized the circle during the round trip.
	// One corrective PATCH with the current geometry closes the gap.
	s.flushPatch(serverID.String(), &CirclePatch{
		Lat:    Float(center.Lat),
		Lng:    Float(center.Lng),
		Radius: Float(radius),
	})
}

func (s *CircleSession) flushPatch(id string, patch *CirclePatch) {
	cid := ParseCircleID(id)
	if !cid.Confirmed() {
		// Still pending: the corrective PATCH after confirmation carries the
		// final geometry, so this update is already covered.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.geo.Patch(ctx, id, patch); err != nil {
		s.logger.Warn("circle patch failed, update dropped", "id", id, "error", err)
		s.emitter.emit(EventPersistFailed, map[string]interface{}{
			"id": id, "op": "patch", "error": err.Error(),
		})
	}
}

func (s *CircleSession) persistDelete(id CircleID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.geo.Delete(ctx, id.String()); err != nil {
		s.logger.Warn("circle delete failed", "id", id.String(), "error", err)
		s.emitter.emit(EventPersistFailed, map[string]interface{}{
			"id": id.String(), "op": "delete", "error": err.Error(),
		})
	}
}

// ----------------------------------------------------------------------------
// Internals
// ----------------------------------------------------------------------------

func (s *CircleSession) findLocked(id CircleID) *Circle {
	if id.IsZero() {
		return nil
	}
	for _, c := range s.circles {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *CircleSession) removeLocked(id CircleID) {
	for i, c := range s.circles {
		if c.ID == id {
			s.circles = append(s.circles[:i], s.circles[i+1:]...)
			return
		}
	}
}

// reselectLocked repairs the selection after a list replacement: an id that
// no longer exists falls back to the first circle, or to no selection.
func (s *CircleSession) reselectLocked() {
	if s.findLocked(s.selected) != nil {
		return
	}
	if len(s.circles) > 0 {
		s.selected = s.circles[0].ID
	} else {
		s.selected = CircleID{}
	}
}

func (s *CircleSession) persistLocked() {
	if s.store == nil {
		return
	}
	snap := make([]CircleSnapshot, 0, len(s.circles))
	for _, c := range s.circles {
		snap = append(snap, c.snapshot())
	}
	if err := s.store.Save(snap); err != nil {
		s.logger.Warn("circle snapshot save failed", "error", err)
	}
}

func (s *CircleSession) loadSnapshot() ([]CircleSnapshot, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Load()
}

func circleFromRecord(rec *CircleRecord) *Circle {
	return &Circle{
		ID:     ConfirmedID(rec.ID.String()),
		Name:   rec.Name,
		Center: LatLng{Lat: rec.Lat, Lng: rec.Lng},
		Radius: clampRadius(rec.Radius),
	}
}

func clampRadius(r float64) float64 {
	if r < MinRadius {
		return MinRadius
	}
	if r > MaxRadius {
		return MaxRadius
	}
	return r
}
