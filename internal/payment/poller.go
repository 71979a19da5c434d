package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DEFAULT_POLL_INTERVAL = 3 * time.Second
	DEFAULT_POLL_TIMEOUT  = 30 * time.Minute
)

var errStillPending = errors.New("payment still pending")

// Poller watches pending payments until they reach a final status and
// settles each one exactly once.
type Poller struct {
	store    Store
	settle   func(ctx context.Context, p *Payment) error
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

func NewPoller(store Store, settle func(ctx context.Context, p *Payment) error, interval, timeout time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DEFAULT_POLL_INTERVAL
	}
	if timeout <= 0 {
		timeout = DEFAULT_POLL_TIMEOUT
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		store:    store,
		settle:   settle,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("poller"),
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[string]struct{}),
	}
}

// Watch starts polling id unless it is already watched.
func (p *Poller) Watch(id string) {
	p.mu.Lock()
	if _, ok := p.active[id]; ok || p.ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.active[id] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.active, id)
			p.mu.Unlock()
		}()
		p.poll(id)
	}()
}

// Resume picks up every payment a previous process left unsettled.
func (p *Poller) Resume(ctx context.Context) (int, error) {
	pending, err := p.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	for _, pay := range pending {
		p.Watch(pay.ID)
	}
	return len(pending), nil
}

func (p *Poller) Watching() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Poller) poll(id string) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	op := func() error {
		pay, err := p.store.Get(ctx, id)
		if errors.Is(err, ErrPaymentNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			p.logger.Warn("poll payment failed", zap.String("payment_id", id), zap.Error(err))
			return err
		}
		if !pay.Status.Final() {
			return errStillPending
		}
		if pay.Credited {
			return nil
		}
		return p.settle(ctx, pay)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.interval), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.logger.Info("stopped polling payment", zap.String("payment_id", id), zap.Duration("after", p.timeout))
			return
		}
		if p.ctx.Err() == nil {
			p.logger.Error("payment poll aborted", zap.String("payment_id", id), zap.Error(err))
		}
	}
}
