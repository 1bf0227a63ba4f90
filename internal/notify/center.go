package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Board remembers each browser's current notifications so the next page
// render can include them.
type Board struct {
	mu      sync.Mutex
	clients map[string][]Notification
}

func NewBoard() *Board {
	return &Board{clients: make(map[string][]Notification)}
}

// For returns the Target recording into one browser's slot.
func (b *Board) For(clientID string) Target {
	return boardTarget{b: b, clientID: clientID}
}

// Snapshot returns the browser's notifications, oldest first.
func (b *Board) Snapshot(clientID string) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification(nil), b.clients[clientID]...)
}

func (b *Board) update(clientID, id string, f func(*Notification)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.clients[clientID]
	for i := range list {
		if list[i].ID == id {
			f(&list[i])
			return
		}
	}
}

type boardTarget struct {
	b        *Board
	clientID string
}

func (t boardTarget) Insert(n Notification) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	t.b.clients[t.clientID] = append(t.b.clients[t.clientID], n)
}

func (t boardTarget) Reveal(id string) {
	t.b.update(t.clientID, id, func(n *Notification) { n.Phase = PhaseVisible })
}

func (t boardTarget) Fade(id string) {
	t.b.update(t.clientID, id, func(n *Notification) { n.Phase = PhaseFading })
}

func (t boardTarget) Remove(id string) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	list := t.b.clients[t.clientID]
	for i := range list {
		if list[i].ID == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(t.b.clients, t.clientID)
		return
	}
	t.b.clients[t.clientID] = list
}

// Live pushes lifecycle events to a browser's open connections.
type Live interface {
	Notify(clientID, action string, n Notification)
}

type liveTarget struct {
	live     Live
	clientID string
}

func (t liveTarget) Insert(n Notification) { t.live.Notify(t.clientID, "insert", n) }
func (t liveTarget) Reveal(id string)      { t.live.Notify(t.clientID, "reveal", Notification{ID: id}) }
func (t liveTarget) Fade(id string)        { t.live.Notify(t.clientID, "fade", Notification{ID: id}) }
func (t liveTarget) Remove(id string)      { t.live.Notify(t.clientID, "remove", Notification{ID: id}) }

// Fanout forwards every call to each target in turn.
type Fanout []Target

func (f Fanout) Insert(n Notification) {
	for _, t := range f {
		t.Insert(n)
	}
}

func (f Fanout) Reveal(id string) {
	for _, t := range f {
		t.Reveal(id)
	}
}

func (f Fanout) Fade(id string) {
	for _, t := range f {
		t.Fade(id)
	}
}

func (f Fanout) Remove(id string) {
	for _, t := range f {
		t.Remove(id)
	}
}

// Center keeps one presenter per browser, each drawing on the shared board
// and, when configured, the live channel.
type Center struct {
	mu         sync.Mutex
	presenters map[string]*centerEntry
	board      *Board
	live       Live
	sched      Scheduler
	cfg        Config
	logger     *slog.Logger
}

type centerEntry struct {
	p        *Presenter
	lastUsed time.Time
}

func NewCenter(board *Board, live Live, sched Scheduler, cfg Config, logger *slog.Logger) *Center {
	return &Center{
		presenters: make(map[string]*centerEntry),
		board:      board,
		live:       live,
		sched:      sched,
		cfg:        cfg,
		logger:     logger.With("component", "notify"),
	}
}

func (c *Center) presenter(clientID string) *Presenter {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.presenters[clientID]
	if !ok {
		targets := Fanout{c.board.For(clientID)}
		if c.live != nil {
			targets = append(targets, liveTarget{live: c.live, clientID: clientID})
		}
		e = &centerEntry{p: NewPresenter(targets, c.sched, c.cfg)}
		c.presenters[clientID] = e
	}
	e.lastUsed = time.Now()
	return e.p
}

// Show presents a notification to one browser.
func (c *Center) Show(clientID, message string, tone Tone, opts ...ShowOption) string {
	id := c.presenter(clientID).Show(message, tone, opts...)
	c.logger.Debug("notification shown", "client_id", clientID, "id", id, "tone", tone)
	return id
}

// Close dismisses a notification on behalf of the browser.
func (c *Center) Close(clientID, id string) error {
	return c.presenter(clientID).Close(id)
}

// Pending returns what the next page render for the browser should show.
func (c *Center) Pending(clientID string) []Notification {
	return c.board.Snapshot(clientID)
}

// Cleanup drops presenters idle longer than maxIdle with nothing on screen.
func (c *Center) Cleanup(maxIdle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.presenters {
		if time.Since(e.lastUsed) > maxIdle && len(e.p.Visible()) == 0 {
			delete(c.presenters, id)
			removed++
		}
	}
	return removed
}
