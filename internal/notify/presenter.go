// Package notify shows transient notifications (toasts). A notification is
// inserted into a Target, revealed on the next tick, faded after its dwell
// time and removed once the fade completes.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Tone string

const (
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// Mode decides what happens to visible notifications when a new one arrives.
type Mode int

const (
	// ModeReplace keeps at most one notification; a new one removes the old.
	ModeReplace Mode = iota
	// ModeStack lets notifications pile up.
	ModeStack
)

type Phase string

const (
	PhaseInserted Phase = "inserted"
	PhaseVisible  Phase = "visible"
	PhaseFading   Phase = "fading"
)

// Dwell times per page, plus the shared timings of every notification.
const (
	DwellSignIn    = 2600 * time.Millisecond
	DwellSignUp    = 2800 * time.Millisecond
	DwellDashboard = 3 * time.Second
	DwellMarketing = 3 * time.Second
	DwellGlobal    = 5 * time.Second

	RevealDelay  = 16 * time.Millisecond
	FadeDuration = 300 * time.Millisecond
)

var (
	ErrNotClosable = errors.New("notifications are not closable")
	ErrUnknownID   = errors.New("no such notification")
)

type Notification struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Tone      Tone          `json:"tone"`
	Closable  bool          `json:"closable"`
	Phase     Phase         `json:"phase"`
	Dwell     time.Duration `json:"dwell"`
	CreatedAt time.Time     `json:"created_at"`
}

// Target renders notifications. Calls for one presenter arrive in order.
type Target interface {
	Insert(n Notification)
	Reveal(id string)
	Fade(id string)
	Remove(id string)
}

type Config struct {
	Mode     Mode
	Dwell    time.Duration
	Closable bool
}

type ShowOption func(*Notification)

// WithDwell overrides the presenter's dwell time for one notification.
func WithDwell(d time.Duration) ShowOption {
	return func(n *Notification) { n.Dwell = d }
}

type active struct {
	n     Notification
	tasks []Task
}

// Presenter is safe for concurrent use.
type Presenter struct {
	mu     sync.Mutex
	target Target
	sched  Scheduler
	cfg    Config
	active map[string]*active
	order  []string
	now    func() time.Time
}

func NewPresenter(target Target, sched Scheduler, cfg Config) *Presenter {
	if cfg.Dwell <= 0 {
		cfg.Dwell = DwellGlobal
	}
	if sched == nil {
		sched = TimerScheduler{}
	}
	return &Presenter{
		target: target,
		sched:  sched,
		cfg:    cfg,
		active: make(map[string]*active),
		now:    time.Now,
	}
}

// Show displays message and returns the notification id.
func (p *Presenter) Show(message string, tone Tone, opts ...ShowOption) string {
	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Tone:      tone,
		Closable:  p.cfg.Closable,
		Phase:     PhaseInserted,
		Dwell:     p.cfg.Dwell,
		CreatedAt: p.now(),
	}
	for _, opt := range opts {
		opt(&n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.Mode == ModeReplace {
		for _, id := range append([]string(nil), p.order...) {
			p.removeLocked(id)
		}
	}

	a := &active{n: n}
	p.active[n.ID] = a
	p.order = append(p.order, n.ID)
	p.target.Insert(n)

	id := n.ID
	a.tasks = append(a.tasks,
		p.sched.After(RevealDelay, func() { p.reveal(id) }),
		p.sched.After(RevealDelay+n.Dwell, func() { p.fade(id) }),
	)
	return id
}

// Close starts the fade of one notification ahead of its dwell time.
func (p *Presenter) Close(id string) error {
	if !p.cfg.Closable {
		return ErrNotClosable
	}

	p.mu.Lock()
	a, ok := p.active[id]
	if !ok {
		p.mu.Unlock()
		return ErrUnknownID
	}
	for _, t := range a.tasks {
		t.Cancel()
	}
	a.tasks = nil
	p.mu.Unlock()

	p.fade(id)
	return nil
}

// Visible returns the notifications not yet removed, oldest first.
func (p *Presenter) Visible() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Notification, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.active[id].n)
	}
	return out
}

func (p *Presenter) reveal(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.active[id]
	if !ok || a.n.Phase != PhaseInserted {
		return
	}
	a.n.Phase = PhaseVisible
	p.target.Reveal(id)
}

func (p *Presenter) fade(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.active[id]
	if !ok || a.n.Phase == PhaseFading {
		return
	}
	a.n.Phase = PhaseFading
	p.target.Fade(id)
	a.tasks = []Task{p.sched.After(FadeDuration, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.removeLocked(id)
	})}
}

func (p *Presenter) removeLocked(id string) {
	a, ok := p.active[id]
	if !ok {
		return
	}
	for _, t := range a.tasks {
		t.Cancel()
	}
	delete(p.active, id)
	for i, cand := range p.order {
		if cand == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.target.Remove(id)
}
