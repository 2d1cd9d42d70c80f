package umgram

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	chatPollInterval = 3 * time.Second
	chatFetchLimit   = 100
)

// PollState is the chat poller lifecycle state.
type PollState string

const (
	PollClosed  PollState = "closed"
	PollOpening PollState = "opening"
	PollOpen    PollState = "open"
)

// LocationProvider reports the caller's current position. Returning false
// means no position is known and the poller falls back to its configured
// position, then to the zero coordinate.
type LocationProvider func() (LatLng, bool)

// ChatPollerOptions tunes a poller. The zero value gives production defaults.
type ChatPollerOptions struct {
	// Interval overrides the poll period.
	Interval time.Duration
	// Limit overrides the per-fetch message cap.
	Limit int
	// Location supplies the access-check position for each fetch.
	Location LocationProvider
	// Fallback is used when Location is nil or reports no fix.
	Fallback LatLng
	// Logger receives poll-failure debug lines. Defaults to slog.Default().
	Logger *slog.Logger
}

// ChatPoller maintains the message list for one circle's chat while the
// panel is open. It fetches on open, then refetches on a fixed interval and
// merges by message id, so the local list only ever grows and a message is
// never duplicated. Poll failures are silent; the list simply stays as it
// was until the next tick.
type ChatPoller struct {
	mu       sync.Mutex
	geo      *GeoClient
	circleID string

	interval time.Duration
	limit    int
	location LocationProvider
	fallback LatLng
	logger   *slog.Logger

	state    PollState
	messages []ChatMessage
	seen     map[string]struct{}
	stopCh   chan struct{}

	handlersMu sync.RWMutex
	handlers   []func([]ChatMessage)
}

// NewChatPoller creates a poller for the given confirmed circle id.
func NewChatPoller(geo *GeoClient, circleID string, opts *ChatPollerOptions) *ChatPoller {
	if opts == nil {
		opts = &ChatPollerOptions{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = chatPollInterval
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = chatFetchLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatPoller{
		geo:      geo,
		circleID: circleID,
		interval: interval,
		limit:    limit,
		location: opts.Location,
		fallback: opts.Fallback,
		logger:   logger,
		state:    PollClosed,
		seen:     make(map[string]struct{}),
	}
}

// State returns the current lifecycle state.
func (p *ChatPoller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// OnMessages registers a handler called with newly arrived messages, in
// arrival order. Handlers run on the poll goroutine.
func (p *ChatPoller) OnMessages(handler func(newMessages []ChatMessage)) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers = append(p.handlers, handler)
}

// Open performs the initial fetch and starts the poll loop. The initial
// fetch error is returned; once open, later poll errors are swallowed.
// Opening an already open poller is a no-op.
func (p *ChatPoller) Open(ctx context.Context) error {
	p.mu.Lock()
	if p.state != PollClosed {
		p.mu.Unlock()
		return nil
	}
	p.state = PollOpening
	p.mu.Unlock()

	if err := p.fetch(ctx); err != nil {
		p.mu.Lock()
		p.state = PollClosed
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.state = PollOpen
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go p.pollLoop(stopCh)
	return nil
}

// Close stops the poll loop. The accumulated messages remain readable.
func (p *ChatPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PollOpen {
		p.state = PollClosed
		return
	}
	close(p.stopCh)
	p.stopCh = nil
	p.state = PollClosed
}

// Messages returns a copy of the accumulated message list in arrival order.
func (p *ChatPoller) Messages() []ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ChatMessage(nil), p.messages...)
}

// Send posts a message to the circle and merges the server's canonical
// record locally, so it shows up before the next poll tick.
func (p *ChatPoller) Send(ctx context.Context, text string) (*ChatMessage, error) {
	pos := p.position()
	msg, err := p.geo.SendMessage(ctx, p.circleID, &SendChatOptions{
		Text: text,
		Lat:  pos.Lat,
		Lng:  pos.Lng,
	})
	if err != nil {
		return nil, err
	}
	p.merge([]ChatMessage{*msg})
	return msg, nil
}

func (p *ChatPoller) pollLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			if err := p.fetch(ctx); err != nil {
				p.logger.Debug("chat poll failed", "circle", p.circleID, "error", err)
			}
			cancel()
		}
	}
}

func (p *ChatPoller) fetch(ctx context.Context) error {
	rows, err := p.geo.Messages(ctx, p.circleID, p.position(), p.limit)
	if err != nil {
		return err
	}
	p.merge(rows)
	return nil
}

// merge appends messages whose id has not been seen yet, preserving the
// incoming order. Re-fetching the same window is a no-op.
func (p *ChatPoller) merge(rows []ChatMessage) {
	p.mu.Lock()
	var fresh []ChatMessage
	for _, m := range rows {
		if _, ok := p.seen[m.ID]; ok {
			continue
		}
		p.seen[m.ID] = struct{}{}
		p.messages = append(p.messages, m)
		fresh = append(fresh, m)
	}
	p.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	p.handlersMu.RLock()
	var handlers []func([]ChatMessage)
	handlers = append(handlers, p.handlers...)
	p.handlersMu.RUnlock()
	for _, h := range handlers {
		h(fresh)
	}
}

func (p *ChatPoller) position() LatLng {
	if p.location != nil {
		if pos, ok := p.location(); ok {
			return pos
		}
	}
	return p.fallback
}
