package umgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGeoBackend is a minimal in-memory /api/geo implementation that records
// every write so tests can assert on request traffic.
type fakeGeoBackend struct {
	mu      sync.Mutex
	nextID  int
	rows    map[string]map[string]interface{}
	patches []map[string]interface{}
	deletes []string

	failCreate bool
	failPatch  bool
	// holdCreate, when set, blocks POST /api/geo/circles until closed.
	holdCreate chan struct{}

	patchCh  chan map[string]interface{}
	deleteCh chan string
	createCh chan string
}

func newFakeGeoBackend() *fakeGeoBackend {
	return &fakeGeoBackend{
		nextID:   100,
		rows:     make(map[string]map[string]interface{}),
		patchCh:  make(chan map[string]interface{}, 16),
		deleteCh: make(chan string, 16),
		createCh: make(chan string, 16),
	}
}

func (f *fakeGeoBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/geo/circles", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			f.mu.Lock()
			out := []map[string]interface{}{}
			for _, row := range f.rows {
				out = append(out, row)
			}
			f.mu.Unlock()
			json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			f.mu.Lock()
			hold := f.holdCreate
			f.mu.Unlock()
			if hold != nil {
				<-hold
			}
			f.mu.Lock()
			if f.failCreate {
				f.mu.Unlock()
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{"code": "DB_DOWN", "message": "insert failed"},
				})
				return
			}
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			f.nextID++
			id := fmt.Sprintf("%d", f.nextID)
			body["id"] = json.Number(id)
			f.rows[id] = body
			f.mu.Unlock()
			json.NewEncoder(w).Encode(body)
			f.createCh <- id
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/geo/circles/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/geo/circles/")
		switch r.Method {
		case http.MethodPatch:
			f.mu.Lock()
			if f.failPatch {
				f.mu.Unlock()
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message":"update failed"}`)
				return
			}
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			body["_id"] = id
			f.patches = append(f.patches, body)
			f.mu.Unlock()
			fmt.Fprint(w, `{}`)
			f.patchCh <- body
		case http.MethodDelete:
			f.mu.Lock()
			delete(f.rows, id)
			f.deletes = append(f.deletes, id)
			f.mu.Unlock()
			fmt.Fprint(w, `{}`)
			f.deleteCh <- id
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func newTestSession(t *testing.T, backend *fakeGeoBackend, store SnapshotStore) (*CircleSession, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL), WithToken("test-token"))
	session := NewCircleSession(client.Geo(), store, &CircleSessionOptions{
		Debounce: 30 * time.Millisecond,
		Timeout:  2 * time.Second,
		Logger:   quietLogger(),
	})
	t.Cleanup(session.Close)
	return session, server
}

func waitChan[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestCircleIDClassification(t *testing.T) {
	if id := ParseCircleID("42"); !id.Confirmed() {
		t.Errorf("numeric id should be confirmed")
	}
	if id := ParseCircleID("1712345678901-a1b2c3"); id.Confirmed() {
		t.Errorf("suffixed id should be pending")
	}
	if id := ParseCircleID(""); id.Confirmed() || !id.IsZero() {
		t.Errorf("empty id should be zero and pending")
	}

	pending := NewPendingID()
	if pending.Confirmed() {
		t.Errorf("minted id should be pending")
	}
	parts := strings.SplitN(pending.String(), "-", 2)
	if len(parts) != 2 || len(parts[1]) != 6 {
		t.Errorf("unexpected pending id shape: %q", pending.String())
	}
	if isNumeric(pending.String()) {
		t.Errorf("pending id must never look numeric: %q", pending.String())
	}
}

func TestRadiusClamp(t *testing.T) {
	backend := newFakeGeoBackend()
	session, _ := newTestSession(t, backend, nil)

	c := session.Create("tiny", DefaultCenter, 1)
	if got := session.Get(c.ID).Radius; got != MinRadius {
		t.Errorf("radius = %v, want clamped to %v", got, MinRadius)
	}

	session.SetRadius(c.ID, 1e9)
	if got := session.Get(c.ID).Radius; got != MaxRadius {
		t.Errorf("radius = %v, want clamped to %v", got, MaxRadius)
	}
}

func TestCreateConfirmsAndCorrects(t *testing.T) {
	backend := newFakeGeoBackend()
	store := NewMemorySnapshotStore()
	session, _ := newTestSession(t, backend, store)

	confirmed := make(chan map[string]interface{}, 1)
	session.On(EventCircleConfirmed, func(_ string, data map[string]interface{}) {
		confirmed <- data
	})

	c := session.Create("home", LatLng{Lat: 24.7, Lng: 46.6}, 500)
	if c.ID.Confirmed() {
		t.Fatalf("fresh circle must carry a pending id")
	}
	if sel := session.Selected(); sel == nil || sel.ID != c.ID {
		t.Fatalf("fresh circle must be selected")
	}

	data := waitChan(t, confirmed, "confirmation event")
	if data["temp_id"] != c.ID.String() {
		t.Errorf("temp_id = %v, want %v", data["temp_id"], c.ID.String())
	}
	serverID := ParseCircleID(data["id"].(string))
	if !serverID.Confirmed() {
		t.Fatalf("server id %q should be confirmed", serverID.String())
	}

	// The corrective PATCH carries the current geometry.
	patch := waitChan(t, backend.patchCh, "corrective patch")
	if patch["_id"] != serverID.String() {
		t.Errorf("patch went to %v, want %v", patch["_id"], serverID.String())
	}
	if patch["lat"].(float64) != 24.7 || patch["radius"].(float64) != 500 {
		t.Errorf("corrective patch = %v", patch)
	}

	// The pending id is gone from list and selection.
	if session.Get(c.ID) != nil {
		t.Errorf("pending id still resolvable after confirmation")
	}
	if got := session.Get(serverID); got == nil || got.Name != "home" {
		t.Errorf("server id not resolvable after confirmation")
	}
	if sel := session.Selected(); sel == nil || sel.ID != serverID {
		t.Errorf("selection did not follow the id swap")
	}

	// The snapshot holds the confirmed id.
	snap, _ := store.Load()
	if len(snap) != 1 || snap[0].ID != serverID.String() {
		t.Errorf("snapshot = %+v, want single entry under %v", snap, serverID.String())
	}
}

func TestEditsDuringCreateReachCorrectivePatch(t *testing.T) {
	backend := newFakeGeoBackend()
	backend.holdCreate = make(chan struct{})
	session, _ := newTestSession(t, backend, nil)

	confirmed := make(chan map[string]interface{}, 1)
	session.On(EventCircleConfirmed, func(_ string, data map[string]interface{}) {
		confirmed <- data
	})

	c := session.Create("moving target", LatLng{Lat: 24.7, Lng: 46.6}, 500)

	// Edit while the create round trip is still open.
	session.SetRadius(c.ID, 900)
	session.SetCenter(c.ID, LatLng{Lat: 25.0, Lng: 47.0})
	close(backend.holdCreate)

	waitChan(t, confirmed, "confirmation event")
	patch := waitChan(t, backend.patchCh, "corrective patch")
	if patch["radius"].(float64) != 900 {
		t.Errorf("corrective radius = %v, want mid-flight edit 900", patch["radius"])
	}
	if patch["lat"].(float64) != 25.0 || patch["lng"].(float64) != 47.0 {
		t.Errorf("corrective center = %v,%v, want mid-flight edit 25,47", patch["lat"], patch["lng"])
	}
}

func TestMutationsCoalesceIntoOnePatch(t *testing.T) {
	backend := newFakeGeoBackend()
	session, _ := newTestSession(t, backend, nil)

	session.Create("spot", DefaultCenter, 500)
	waitChan(t, backend.createCh, "create")
	waitChan(t, backend.patchCh, "corrective patch")

	var id CircleID
	for _, c := range session.Circles() {
		id = c.ID
	}

	for r := 600.0; r <= 1000; r += 100 {
		session.SetRadius(id, r)
	}
	session.SetName(id, "final name")

	patch := waitChan(t, backend.patchCh, "debounced patch")
	if patch["radius"].(float64) != 1000 {
		t.Errorf("coalesced radius = %v, want last value 1000", patch["radius"])
	}
	if patch["name"] != "final name" {
		t.Errorf("coalesced name = %v", patch["name"])
	}

	select {
	case extra := <-backend.patchCh:
		t.Errorf("expected a single coalesced patch, got extra %v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDeleteCancelsPendingPatch(t *testing.T) {
	backend := newFakeGeoBackend()
	session, _ := newTestSession(t, backend, nil)

	session.Create("doomed", DefaultCenter, 500)
	waitChan(t, backend.createCh, "create")
	waitChan(t, backend.patchCh, "corrective patch")

	var id CircleID
	for _, c := range session.Circles() {
		id = c.ID
	}

	session.SetRadius(id, 900)
	session.Delete(id)

	waitChan(t, backend.deleteCh, "delete")
	select {
	case patch := <-backend.patchCh:
		t.Errorf("patch fired after delete: %v", patch)
	case <-time.After(150 * time.Millisecond):
	}
	if len(session.Circles()) != 0 {
		t.Errorf("circle still in list after delete")
	}
}

func TestFailedPatchKeepsLocalState(t *testing.T) {
	backend := newFakeGeoBackend()
	session, _ := newTestSession(t, backend, nil)

	session.Create("sticky", DefaultCenter, 500)
	waitChan(t, backend.createCh, "create")
	waitChan(t, backend.patchCh, "corrective patch")

	var id CircleID
	for _, c := range session.Circles() {
		id = c.ID
	}

	failed := make(chan map[string]interface{}, 1)
	session.On(EventPersistFailed, func(_ string, data map[string]interface{}) {
		failed <- data
	})

	backend.mu.Lock()
	backend.failPatch = true
	backend.mu.Unlock()

	session.SetRadius(id, 1500)
	data := waitChan(t, failed, "persist failure event")
	if data["op"] != "patch" {
		t.Errorf("op = %v, want patch", data["op"])
	}
	if got := session.Get(id).Radius; got != 1500 {
		t.Errorf("local radius = %v, failed patch must not roll back", got)
	}
}

func TestCreateFailureKeepsLocalCircle(t *testing.T) {
	backend := newFakeGeoBackend()
	backend.failCreate = true
	store := NewMemorySnapshotStore()
	session, _ := newTestSession(t, backend, store)

	failed := make(chan map[string]interface{}, 1)
	session.On(EventPersistFailed, func(_ string, data map[string]interface{}) {
		failed <- data
	})

	c := session.Create("offline", DefaultCenter, 500)
	data := waitChan(t, failed, "persist failure event")
	if data["op"] != "create" {
		t.Errorf("op = %v, want create", data["op"])
	}

	if got := session.Get(c.ID); got == nil || got.ID.Confirmed() {
		t.Fatalf("local circle must survive a failed create under its pending id")
	}
	snap, _ := store.Load()
	if len(snap) != 1 || ParseCircleID(snap[0].ID).Confirmed() {
		t.Errorf("snapshot should hold the pending circle, got %+v", snap)
	}
}

func TestDeletePendingCircleStaysLocal(t *testing.T) {
	backend := newFakeGeoBackend()
	backend.failCreate = true
	store := NewMemorySnapshotStore()
	session, _ := newTestSession(t, backend, store)

	failed := make(chan map[string]interface{}, 1)
	session.On(EventPersistFailed, func(_ string, data map[string]interface{}) {
		failed <- data
	})

	c := session.Create("never synced", DefaultCenter, 500)
	waitChan(t, failed, "failed create")

	session.Delete(c.ID)
	if len(session.Circles()) != 0 {
		t.Errorf("circle still in list after delete")
	}
	snap, _ := store.Load()
	if len(snap) != 0 {
		t.Errorf("snapshot still holds the deleted circle: %+v", snap)
	}

	// A circle the server never accepted must not produce a server delete.
	select {
	case id := <-backend.deleteCh:
		t.Errorf("server delete issued for pending id %s", id)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestLoadReplacesFromServer(t *testing.T) {
	backend := newFakeGeoBackend()
	backend.rows["7"] = map[string]interface{}{
		"id": json.Number("7"), "name": "park", "lat": 24.7, "lng": 46.6, "radius": 800.0,
	}
	store := NewMemorySnapshotStore()
	store.Save([]CircleSnapshot{{ID: "999", Name: "stale", Center: DefaultCenter, Radius: 100}})
	session, _ := newTestSession(t, backend, store)

	if err := session.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	circles := session.Circles()
	if len(circles) != 1 || circles[0].Name != "park" {
		t.Fatalf("server list must fully replace local state, got %+v", circles)
	}

	// The snapshot is rewritten from the server list.
	snap, _ := store.Load()
	if len(snap) != 1 || snap[0].ID != "7" {
		t.Errorf("snapshot = %+v, want rewritten from server", snap)
	}
}

func TestLoadFallsBackToSnapshot(t *testing.T) {
	store := NewMemorySnapshotStore()
	store.Save([]CircleSnapshot{
		{ID: "12", Name: "cafe", Center: LatLng{Lat: 24.1, Lng: 46.2}, Radius: 300},
		{ID: "1712345678901-abc123", Name: "draft", Center: DefaultCenter, Radius: 500},
	})

	server := httptest.NewServer(nil)
	server.Close() // every request now fails

	client := NewClient(WithBaseURL(server.URL))
	session := NewCircleSession(client.Geo(), store, &CircleSessionOptions{Logger: quietLogger()})
	defer session.Close()

	notice := make(chan struct{}, 1)
	session.On(EventNotice, func(string, map[string]interface{}) { notice <- struct{}{} })

	if err := session.Load(context.Background()); err == nil {
		t.Fatalf("load against a dead server must return the fetch error")
	}
	waitChan(t, notice, "fallback notice")

	circles := session.Circles()
	if len(circles) != 2 {
		t.Fatalf("snapshot fallback gave %d circles, want 2", len(circles))
	}
	if !circles[0].ID.Confirmed() || circles[1].ID.Confirmed() {
		t.Errorf("id kinds lost across snapshot round trip: %+v", circles)
	}
}
