package device

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/muurk/essp/internal/logging"
	"github.com/muurk/essp/internal/ssp"
)

// Poller states and events
const (
	PollerStopped = "stopped"
	PollerRunning = "running"

	eventStart = "start"
	eventStop  = "stop"
)

// PollResult is the outcome of one background poll.
type PollResult struct {
	Time      time.Time
	Encrypted bool
	Response  *ssp.PollResponse // nil when Err is set
	Err       error
}

// poller issues keep-alive polls on a fixed cadence. At most one loop runs
// per session.
type poller struct {
	session  *Session
	interval time.Duration
	state    *fsm.FSM
	running  *atomic.Bool
	loops    *atomic.Int32

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[int]chan PollResult
	nextSub     int
}

func newPoller(s *Session, interval time.Duration) *poller {
	p := &poller{
		session:     s,
		interval:    interval,
		running:     atomic.NewBool(false),
		loops:       atomic.NewInt32(0),
		subscribers: make(map[int]chan PollResult),
	}
	p.state = fsm.NewFSM(
		PollerStopped,
		fsm.Events{
			{Name: eventStart, Src: []string{PollerStopped}, Dst: PollerRunning},
			{Name: eventStop, Src: []string{PollerRunning}, Dst: PollerStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logging.Debug("Poller state change", zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
	return p
}

// StartBackgroundPolling starts the keep-alive loop. Calling it while a loop
// is running does nothing and returns nil. The loop stops when ctx is done or
// StopBackgroundPolling is called.
func (s *Session) StartBackgroundPolling(ctx context.Context) error {
	p := s.poller
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	if err := p.state.Event(context.Background(), eventStart); err != nil {
		cancel()
		p.running.Store(false)
		return err
	}

	p.loops.Inc()
	go p.run(ctx, done)

	logging.Info("Background polling started", zap.Duration("interval", p.interval))
	return nil
}

// StopBackgroundPolling stops the keep-alive loop and waits for it to exit.
func (s *Session) StopBackgroundPolling() {
	p := s.poller
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// PollerState returns PollerRunning or PollerStopped.
func (s *Session) PollerState() string {
	return s.poller.state.Current()
}

// Subscribe registers for background poll results. Results are dropped for
// a subscriber whose buffer is full. The returned function unsubscribes.
func (s *Session) Subscribe(buffer int) (<-chan PollResult, func()) {
	p := s.poller
	ch := make(chan PollResult, buffer)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subscribers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := p.state.Event(context.Background(), eventStop); err != nil {
			logging.Warn("Poller state change failed", zap.Error(err))
		}
		p.mu.Lock()
		p.cancel = nil
		p.done = nil
		p.mu.Unlock()
		p.running.Store(false)
		logging.Info("Background polling stopped")
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := p.tick(ctx)
			if ctx.Err() != nil {
				return
			}
			p.publish(result)
		}
	}
}

// tick issues one poll. Failures are logged and returned in the result; they
// never stop the loop.
func (p *poller) tick(ctx context.Context) PollResult {
	s := p.session
	result := PollResult{Time: time.Now()}
	op := "background " + ssp.CmdPoll.String()

	err := s.withLocks(ctx, func(lease *Lease, keys *KeyLease) error {
		result.Encrypted = keys.Key() != nil
		resp, err := s.dispatch(ctx, lease, keys, op, ssp.NewCommand(ssp.CmdPoll))
		if err != nil {
			return err
		}
		if !resp.Status.IsOK() {
			return newStatusError(op, resp.Status)
		}
		poll, err := ssp.ParsePoll(resp)
		if err != nil {
			return newDecodeError(op, "failed to parse events", err)
		}
		result.Response = poll
		return nil
	})

	if err != nil {
		result.Err = err
		logging.Warn("Failed poll command",
			zap.Bool("encrypted", result.Encrypted),
			zap.Error(err))
		return result
	}

	logging.Debug("Successful poll command",
		zap.Bool("encrypted", result.Encrypted),
		zap.Stringer("response", result.Response))
	return result
}

func (p *poller) publish(r PollResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- r:
		default:
		}
	}
}
