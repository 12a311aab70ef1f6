package payment

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/masomopay/core"
)

// stats are exposed under /debug/vars.
var stats = expvar.NewMap("payment_sessions")

type PollerOptions struct {
	// Deadline is the wall-clock budget of a session.
	Deadline time.Duration
	// Interval separates two status checks.
	Interval time.Duration
	// CheckTimeout bounds a single status check. Must be shorter than Interval.
	CheckTimeout time.Duration
	// NotifyTimeout bounds the expiry notification sent to the backend.
	NotifyTimeout time.Duration
}

func DefaultPollerOptions() PollerOptions {
	return PollerOptions{
		Deadline:      60 * time.Second,
		Interval:      3 * time.Second,
		CheckTimeout:  2 * time.Second,
		NotifyTimeout: 5 * time.Second,
	}
}

// OptionsFromConfig reads the reconciliation timings of conf.
func OptionsFromConfig(conf core.PaymentsConfig) PollerOptions {
	return PollerOptions{
		Deadline:      conf.Deadline,
		Interval:      conf.PollInterval,
		CheckTimeout:  conf.CheckTimeout,
		NotifyTimeout: conf.NotifyTimeout,
	}
}

// Poller resolves transaction codes to SUCCESS or EXPIRED by polling the Gateway.
type Poller struct {
	gateway Gateway
	logger  core.Logger
	opts    PollerOptions
}

// NewPoller returns a Poller; zero options take their default value.
func NewPoller(gateway Gateway, logger core.Logger, opts PollerOptions) *Poller {
	def := DefaultPollerOptions()
	if opts.Deadline == 0 {
		opts.Deadline = def.Deadline
	}
	if opts.Interval == 0 {
		opts.Interval = def.Interval
	}
	if opts.CheckTimeout == 0 {
		opts.CheckTimeout = def.CheckTimeout
		if opts.CheckTimeout >= opts.Interval {
			opts.CheckTimeout = opts.Interval * 2 / 3
		}
	}
	if opts.NotifyTimeout == 0 {
		opts.NotifyTimeout = def.NotifyTimeout
	}

	vala.BeginValidation().Validate(
		core.IsNotNil(gateway, "gateway"),
		core.IsNotNil(logger, "logger"),
		positive(opts.Deadline, "Deadline"),
		positive(opts.Interval, "Interval"),
		positive(opts.CheckTimeout, "CheckTimeout"),
		positive(opts.NotifyTimeout, "NotifyTimeout"),
	).CheckAndPanic().Validate(
		// a check started before the deadline must answer before the next tick would have
		shorterThan(opts.CheckTimeout, opts.Interval, "CheckTimeout", "Interval"),
	).CheckAndPanic()

	return &Poller{gateway: gateway, logger: logger, opts: opts}
}

func (p *Poller) Options() PollerOptions { return p.opts }

// Session is one bounded attempt at resolving a transaction code.
// It lives in memory only; Cancel it when whatever drives it goes away.
type Session struct {
	code      TransactionCode
	startedAt time.Time
	deadline  time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome Status
}

func newSession(code TransactionCode, deadline time.Duration, cancel context.CancelFunc) *Session {
	return &Session{
		code:      code,
		startedAt: nowFunc(),
		deadline:  deadline,
		cancel:    cancel,
		done:      make(chan struct{}),
		outcome:   StatusPending,
	}
}

func (s *Session) Code() TransactionCode  { return s.code }
func (s *Session) StartedAt() time.Time   { return s.startedAt }
func (s *Session) Deadline() time.Time    { return s.startedAt.Add(s.deadline) }
func (s *Session) Elapsed() time.Duration { return nowFunc().Sub(s.startedAt) }
func (s *Session) Done() <-chan struct{}  { return s.done }
func (s *Session) Cancel()                { s.cancel() }

// Outcome is PENDING until the session is done.
func (s *Session) Outcome() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Wait blocks until the session is done or ctx is.
func (s *Session) Wait(ctx context.Context) (Status, error) {
	select {
	case <-s.done:
		return s.Outcome(), nil
	case <-ctx.Done():
		return StatusPending, ctx.Err()
	}
}

func (s *Session) finish(status Status) {
	s.mu.Lock()
	s.outcome = status
	s.mu.Unlock()
	close(s.done)
}

// Start resolves code.
// A code already resolved in ledger is answered synchronously, without calling the gateway:
// the returned Session is done and its actions have run with a Replayed entry.
// Otherwise polling runs in the background until SUCCESS, EXPIRED or cancellation.
func (p *Poller) Start(ctx context.Context, ledger StatusLedger, code TransactionCode, actions Actions) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	s := newSession(code, p.opts.Deadline, cancel)

	if entry, ok := ledger.Get(code); ok && entry.Status.IsTerminal() {
		stats.Add("resumed", 1)
		p.logger.Info(fmt.Sprintf("payment %s: already %s", code, entry.Status))
		entry.Replayed = true
		p.perform(sessCtx, actions, entry)
		s.finish(entry.Status)
		cancel()
		return s
	}

	stats.Add("started", 1)
	p.logger.Info(fmt.Sprintf("payment %s: polling for %v every %v", code, p.opts.Deadline, p.opts.Interval))
	go p.run(sessCtx, s, ledger, actions)
	return s
}

type checkResult struct {
	paid bool
	err  error
}

func (p *Poller) run(ctx context.Context, s *Session, ledger StatusLedger, actions Actions) {
	defer s.cancel()

	stop := make(chan struct{})
	defer close(stop)

	results := make(chan checkResult)
	inFlight := 0
	check := func() {
		inFlight++
		go func() {
			cctx, cancel := context.WithTimeout(ctx, p.opts.CheckTimeout)
			defer cancel()

			paid, err := p.gateway.CheckStatus(cctx, s.code)
			select {
			case results <- checkResult{paid: paid, err: err}:
			case <-stop: // resolved meanwhile
			}
		}()
	}

	// both timers measure from the session start
	deadline := time.NewTimer(s.deadline - s.Elapsed())
	defer deadline.Stop()
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	var grace <-chan time.Time
	expiring := false

	check()
	for {
		select {
		case <-ctx.Done():
			stats.Add("cancelled", 1)
			p.logger.Info(fmt.Sprintf("payment %s: polling cancelled after %v", s.code, s.Elapsed()))
			s.finish(StatusCancelled)
			return

		case <-ticker.C:
			if expiring || s.Elapsed() >= s.deadline {
				continue
			}
			check()

		case <-deadline.C:
			expiring = true
			ticker.Stop()
			if inFlight == 0 {
				p.expire(ctx, s, ledger, actions)
				return
			}
			// a check started before the deadline may still report the payment
			graceTimer := time.NewTimer(p.opts.CheckTimeout)
			defer graceTimer.Stop()
			grace = graceTimer.C

		case <-grace:
			p.logger.Warn(fmt.Sprintf("payment %s: %d status check(s) unanswered at expiry", s.code, inFlight))
			p.expire(ctx, s, ledger, actions)
			return

		case res := <-results:
			inFlight--
			switch {
			case res.err != nil:
				stats.Add("check_failures", 1)
				p.logger.Warn(fmt.Sprintf("payment %s: status check failed: %v", s.code, res.err), res.err)
			case res.paid:
				p.succeed(ctx, s, ledger, actions)
				return
			default:
				p.logger.Debug(fmt.Sprintf("payment %s: not paid yet (%v elapsed)", s.code, s.Elapsed()))
			}
			if expiring && inFlight == 0 {
				p.expire(ctx, s, ledger, actions)
				return
			}
		}
	}
}

func (p *Poller) succeed(ctx context.Context, s *Session, ledger StatusLedger, actions Actions) {
	stats.Add("succeeded", 1)
	p.logger.Info(fmt.Sprintf("payment %s: paid after %v", s.code, s.Elapsed()))

	ledger.Set(s.code, StatusSuccess)
	p.perform(ctx, actions, LedgerEntry{TransactionCode: s.code, Status: StatusSuccess, ResolvedAt: nowFunc().UTC()})
	s.finish(StatusSuccess)
}

func (p *Poller) expire(ctx context.Context, s *Session, ledger StatusLedger, actions Actions) {
	stats.Add("expired", 1)
	p.logger.Info(fmt.Sprintf("payment %s: expired after %v", s.code, s.Elapsed()))

	// best-effort, never retried; it must not hold the outcome back
	go func(code TransactionCode) {
		nctx, cancel := context.WithTimeout(context.Background(), p.opts.NotifyTimeout)
		defer cancel()
		if err := p.gateway.ExpirePayment(nctx, code); err != nil {
			p.logger.Error(fmt.Sprintf("payment %s: notifying expiry: %v", code, err), err)
		}
	}(s.code)

	ledger.Set(s.code, StatusExpired)
	p.perform(ctx, actions, LedgerEntry{TransactionCode: s.code, Status: StatusExpired, ResolvedAt: nowFunc().UTC()})
	s.finish(StatusExpired)
}

// perform runs the action matching entry.Status; a panicking action is logged, never propagated.
func (p *Poller) perform(ctx context.Context, actions Actions, entry LedgerEntry) {
	if actions == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(fmt.Sprintf("payment %s: %s action panicked: %v", entry.TransactionCode, entry.Status, r))
		}
	}()

	switch entry.Status {
	case StatusSuccess:
		actions.Succeeded(ctx, entry)
	case StatusExpired:
		actions.Expired(ctx, entry)
	}
}
