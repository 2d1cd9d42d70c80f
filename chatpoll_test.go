package umgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeChatBackend serves one circle's chat endpoint and lets tests grow the
// message list between polls.
type fakeChatBackend struct {
	mu       sync.Mutex
	messages []ChatMessage
	fetches  int
	lastLat  string
	lastLng  string
	fetchCh  chan int
}

func newFakeChatBackend() *fakeChatBackend {
	return &fakeChatBackend{fetchCh: make(chan int, 64)}
}

func (f *fakeChatBackend) add(id, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, ChatMessage{ID: id, UserID: "u1", Text: text})
}

func (f *fakeChatBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/geo/circles/42/chat/messages", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			f.mu.Lock()
			f.fetches++
			n := f.fetches
			f.lastLat = r.URL.Query().Get("lat")
			f.lastLng = r.URL.Query().Get("lng")
			out := append([]ChatMessage(nil), f.messages...)
			f.mu.Unlock()
			json.NewEncoder(w).Encode(out)
			f.fetchCh <- n
		case http.MethodPost:
			var body SendChatOptions
			json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			msg := ChatMessage{ID: "m" + strconv.Itoa(len(f.messages)+1), UserID: "me", Text: body.Text}
			f.messages = append(f.messages, msg)
			f.mu.Unlock()
			json.NewEncoder(w).Encode(msg)
		}
	})
	return mux
}

func newTestPoller(t *testing.T, backend *fakeChatBackend, opts *ChatPollerOptions) *ChatPoller {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	if opts == nil {
		opts = &ChatPollerOptions{}
	}
	if opts.Interval == 0 {
		opts.Interval = 20 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	client := NewClient(WithBaseURL(server.URL), WithToken("test-token"))
	p := NewChatPoller(client.Geo(), "42", opts)
	t.Cleanup(p.Close)
	return p
}

func TestPollerMergesWithoutDuplicates(t *testing.T) {
	backend := newFakeChatBackend()
	backend.add("m1", "hello")
	backend.add("m2", "anyone here?")
	p := newTestPoller(t, backend, nil)

	arrived := make(chan []ChatMessage, 16)
	p.OnMessages(func(msgs []ChatMessage) { arrived <- msgs })

	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	if p.State() != PollOpen {
		t.Fatalf("state = %v, want open", p.State())
	}

	first := waitChan(t, arrived, "initial batch")
	if len(first) != 2 {
		t.Fatalf("initial batch = %d messages, want 2", len(first))
	}

	// The next window overlaps entirely plus one new message.
	backend.add("m3", "yes")
	fresh := waitChan(t, arrived, "second batch")
	if len(fresh) != 1 || fresh[0].ID != "m3" {
		t.Fatalf("overlapping poll must yield only the new message, got %+v", fresh)
	}

	got := p.Messages()
	if len(got) != 3 {
		t.Fatalf("messages = %d, want 3", len(got))
	}
	for i, want := range []string{"m1", "m2", "m3"} {
		if got[i].ID != want {
			t.Errorf("messages[%d] = %s, want %s (arrival order)", i, got[i].ID, want)
		}
	}
}

func TestPollerCloseStopsFetching(t *testing.T) {
	backend := newFakeChatBackend()
	p := newTestPoller(t, backend, nil)

	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitChan(t, backend.fetchCh, "initial fetch")
	waitChan(t, backend.fetchCh, "first poll tick")
	p.Close()
	if p.State() != PollClosed {
		t.Fatalf("state = %v, want closed", p.State())
	}

	// Drain anything already in flight, then the line must go quiet.
	time.Sleep(60 * time.Millisecond)
	for {
		select {
		case <-backend.fetchCh:
			continue
		default:
		}
		break
	}
	select {
	case <-backend.fetchCh:
		t.Errorf("fetch after close")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestPollerOpenErrorStaysClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"outside circle"}`, http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	client := NewClient(WithBaseURL(server.URL))
	p := NewChatPoller(client.Geo(), "42", &ChatPollerOptions{Logger: quietLogger()})

	if err := p.Open(context.Background()); err == nil {
		t.Fatalf("open against a denying server must fail")
	}
	if p.State() != PollClosed {
		t.Errorf("state = %v, want closed after failed open", p.State())
	}
}

func TestPollerSendAppearsImmediately(t *testing.T) {
	backend := newFakeChatBackend()
	p := newTestPoller(t, backend, &ChatPollerOptions{Interval: time.Hour})

	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	msg, err := p.Send(context.Background(), "first!")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	got := p.Messages()
	if len(got) != 1 || got[0].ID != msg.ID || got[0].Text != "first!" {
		t.Fatalf("sent message not merged locally: %+v", got)
	}
}

func TestPollerLocationFallbackChain(t *testing.T) {
	backend := newFakeChatBackend()

	var haveFix bool
	opts := &ChatPollerOptions{
		Interval: time.Hour,
		Location: func() (LatLng, bool) { return LatLng{Lat: 10, Lng: 20}, haveFix },
		Fallback: LatLng{Lat: 24.7136, Lng: 46.6753},
	}
	p := newTestPoller(t, backend, opts)

	// No fix: the configured fallback position is sent.
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	waitChan(t, backend.fetchCh, "fetch")
	backend.mu.Lock()
	lat := backend.lastLat
	backend.mu.Unlock()
	if lat != "24.7136" {
		t.Errorf("lat = %q, want fallback 24.7136", lat)
	}

	// With a fix the provider position wins.
	haveFix = true
	p.Close()
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	waitChan(t, backend.fetchCh, "fetch with fix")
	backend.mu.Lock()
	lat, lng := backend.lastLat, backend.lastLng
	backend.mu.Unlock()
	if lat != "10" || lng != "20" {
		t.Errorf("position = %q,%q, want provider 10,20", lat, lng)
	}
}
