// Package panel implements the dashboard's data views. Each panel drives
// one remote fetch at a time per parameter change and applies only the
// result of its most recently issued request.
package panel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/guardian-ibera/firewatch/internal/gateway"
)

type Status int

const (
	Idle Status = iota
	Loading
	Success
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return "idle"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrSuperseded is returned to the caller whose response arrived after a
// newer request had been issued; the response was discarded.
var ErrSuperseded = errors.New("superseded by a newer request")

// State is a value copy of a panel's view state. Data is only meaningful
// when Status is Success.
type State[T any] struct {
	Status Status `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error,omitempty"`
	Seq    uint64 `json:"seq"`
}

// Listener receives every state change of a panel, keyed by panel name.
type Listener func(name string, state any)

type options struct {
	listener       Listener
	onUnauthorized func(error)
	now            func() time.Time
}

type Option func(*options)

func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithUnauthorizedHandler is called with the failure whenever a fetch fails
// with an Unauthorized classification.
func WithUnauthorizedHandler(fn func(error)) Option {
	return func(o *options) { o.onUnauthorized = fn }
}

// WithClock overrides the clock used to validate date ranges.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Panel is the generic Idle → Loading → Success | Failed machine.
type Panel[T any] struct {
	name string
	opts options

	mu    sync.Mutex
	seq   uint64
	state State[T]
}

func newPanel[T any](name string, o options) *Panel[T] {
	return &Panel[T]{name: name, opts: o}
}

func (p *Panel[T]) Name() string { return p.name }

func (p *Panel[T]) State() State[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reset returns the panel to Idle. Responses to requests issued before the
// reset are discarded on arrival.
func (p *Panel[T]) Reset() {
	p.mu.Lock()
	p.seq++
	p.state = State[T]{Status: Idle, Seq: p.seq}
	snap := p.state
	p.mu.Unlock()
	p.notify(snap)
}

// run issues fetch as a new invocation. The outcome is applied only if no
// newer invocation was started in the meantime.
func (p *Panel[T]) run(ctx context.Context, what string, fetch func(context.Context) (T, error)) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.state.Status = Loading
	p.state.Error = ""
	p.state.Seq = seq
	snap := p.state
	p.mu.Unlock()
	p.notify(snap)

	data, err := fetch(ctx)

	p.mu.Lock()
	if seq != p.seq {
		latest := p.seq
		p.mu.Unlock()
		slog.Debug("discarding stale response", "panel", p.name, "seq", seq, "latest", latest)
		p.expireOn(err)
		return ErrSuperseded
	}
	if err != nil {
		// Drop prior data so a failure never looks like fresh content.
		p.state = State[T]{Status: Failed, Error: what + ": " + gateway.Describe(err), Seq: seq}
	} else {
		p.state = State[T]{Status: Success, Data: data, Seq: seq}
	}
	snap = p.state
	p.mu.Unlock()
	p.notify(snap)

	if err != nil {
		slog.Error("panel fetch failed", "panel", p.name, "seq", seq, "error", err)
		p.expireOn(err)
	}
	return err
}

// expireOn runs the unauthorized hook for err, whether or not the response
// was stale.
func (p *Panel[T]) expireOn(err error) {
	if err != nil && errors.Is(err, gateway.ErrUnauthorized) && p.opts.onUnauthorized != nil {
		p.opts.onUnauthorized(err)
	}
}

func (p *Panel[T]) notify(s State[T]) {
	if p.opts.listener != nil {
		p.opts.listener(p.name, s)
	}
}
