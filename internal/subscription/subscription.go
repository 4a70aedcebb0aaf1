package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vaultpricing/internal/provider"
	"vaultpricing/internal/scheduler"
)

const (
	DefaultPollInterval      = 5 * time.Minute
	DefaultFreshnessInterval = time.Second
)

// Fetcher is the read side of the price fetch service.
type Fetcher interface {
	FetchPrice(ctx context.Context, symbol string) (provider.Quote, error)
}

type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is a snapshot of one subscription. Quote is only meaningful when
// HasQuote is set; an Error state keeps the last good quote.
type State struct {
	Symbol             string         `json:"symbol"`
	Status             Status         `json:"status"`
	Quote              provider.Quote `json:"quote"`
	HasQuote           bool           `json:"has_quote"`
	Err                string         `json:"error,omitempty"`
	LastUpdated        time.Time      `json:"last_updated"`
	SecondsSinceUpdate int            `json:"seconds_since_update"`
}

func (s State) IsLoading() bool { return s.Status == Loading }

// Price returns the live price, if any.
func (s State) Price() (float64, bool) {
	if !s.HasQuote {
		return 0, false
	}
	return s.Quote.Price, true
}

// Subscription keeps one symbol's price up to date while mounted. Subscribers
// of the same symbol don't share state; they converge through the shared cache
// behind the Fetcher.
type Subscription struct {
	symbol    string
	fetcher   Fetcher
	sched     scheduler.Scheduler
	poll      time.Duration
	freshness time.Duration
	now       func() time.Time
	log       *slog.Logger

	mu        sync.Mutex
	state     State
	mounted   bool
	gen       uint64 // bumped on every mount and unmount
	cancels   []scheduler.Cancel
	listeners map[int]func(State)
	nextID    int
	version   uint64 // bumped on every state change

	// Listener delivery. One goroutine delivers at a time, newest version
	// first; older snapshots that arrive late are dropped.
	notifyMu   sync.Mutex
	pending    State
	pendingV   uint64
	delivered  uint64
	delivering bool
}

type Option func(*Subscription)

func WithScheduler(s scheduler.Scheduler) Option { return func(sub *Subscription) { sub.sched = s } }

func WithPollInterval(d time.Duration) Option { return func(sub *Subscription) { sub.poll = d } }

func WithFreshnessInterval(d time.Duration) Option {
	return func(sub *Subscription) { sub.freshness = d }
}

func WithClock(now func() time.Time) Option { return func(sub *Subscription) { sub.now = now } }

func WithLogger(l *slog.Logger) Option { return func(sub *Subscription) { sub.log = l } }

func New(symbol string, fetcher Fetcher, opts ...Option) *Subscription {
	s := &Subscription{
		symbol:    symbol,
		fetcher:   fetcher,
		sched:     scheduler.Ticker{},
		poll:      DefaultPollInterval,
		freshness: DefaultFreshnessInterval,
		now:       time.Now,
		log:       slog.Default(),
		state:     State{Symbol: symbol, Status: Idle},
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Subscription) Symbol() string { return s.symbol }

// State returns the current snapshot.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mount starts polling and kicks off the first fetch in the background.
// Mounting twice is a no-op.
func (s *Subscription) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.gen++
	gen := s.gen
	s.state.Status = Loading
	s.cancels = []scheduler.Cancel{
		s.sched.Schedule(s.poll, func() { s.refresh(ctx, gen) }),
		s.sched.Schedule(s.freshness, s.tick),
	}
	s.version++
	st, v := s.state, s.version
	s.mu.Unlock()

	s.notify(st, v)
	go s.refresh(ctx, gen)
}

// Unmount cancels the timers. A fetch already in flight still completes and
// lands in the cache, but not in this subscription's state.
func (s *Subscription) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	s.gen++
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Refetch fetches now, bypassing the poll timer but not the cache, and returns
// the resulting state. On an unmounted subscription it only returns State.
func (s *Subscription) Refetch(ctx context.Context) State {
	s.mu.Lock()
	mounted, gen := s.mounted, s.gen
	s.mu.Unlock()
	if !mounted {
		return s.State()
	}
	return s.refresh(ctx, gen)
}

// OnChange registers fn to be called with new states, in the order they were
// made. A listener that falls behind concurrent updates sees only the newest.
// The returned func removes it.
func (s *Subscription) OnChange(fn func(State)) (remove func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Subscription) refresh(ctx context.Context, gen uint64) State {
	st, ok := s.update(gen, func(st *State) { st.Status = Loading })
	if !ok {
		return st
	}

	q, err := s.fetcher.FetchPrice(ctx, s.symbol)

	st, ok = s.update(gen, func(st *State) {
		if err != nil {
			st.Status = Error
			st.Err = err.Error()
			return
		}
		st.Status = Ready
		st.Err = ""
		st.Quote = q
		st.HasQuote = true
		st.LastUpdated = s.now()
		st.SecondsSinceUpdate = 0
	})
	if !ok {
		s.log.Debug("dropping price for unmounted subscription", "symbol", s.symbol)
	}
	return st
}

// tick re-derives SecondsSinceUpdate without fetching.
func (s *Subscription) tick() {
	s.mu.Lock()
	if !s.mounted || s.state.LastUpdated.IsZero() {
		s.mu.Unlock()
		return
	}
	secs := int(s.now().Sub(s.state.LastUpdated) / time.Second)
	if secs == s.state.SecondsSinceUpdate {
		s.mu.Unlock()
		return
	}
	s.state.SecondsSinceUpdate = secs
	s.version++
	st, v := s.state, s.version
	s.mu.Unlock()
	s.notify(st, v)
}

// update applies fn if gen is still the live mount and notifies listeners.
func (s *Subscription) update(gen uint64, fn func(*State)) (State, bool) {
	s.mu.Lock()
	if !s.mounted || gen != s.gen {
		st := s.state
		s.mu.Unlock()
		return st, false
	}
	fn(&s.state)
	s.version++
	st, v := s.state, s.version
	s.mu.Unlock()
	s.notify(st, v)
	return st, true
}

// notify hands snapshot v to the listeners unless a newer one was already
// queued or delivered. If another call is delivering, it picks v up when done.
func (s *Subscription) notify(st State, v uint64) {
	s.notifyMu.Lock()
	if v <= s.pendingV {
		s.notifyMu.Unlock()
		return
	}
	s.pending, s.pendingV = st, v
	if s.delivering {
		s.notifyMu.Unlock()
		return
	}
	s.delivering = true
	for s.pendingV > s.delivered {
		next := s.pending
		s.delivered = s.pendingV
		s.notifyMu.Unlock()
		for _, fn := range s.listenerList() {
			fn(next)
		}
		s.notifyMu.Lock()
	}
	s.delivering = false
	s.notifyMu.Unlock()
}

func (s *Subscription) listenerList() []func(State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}
