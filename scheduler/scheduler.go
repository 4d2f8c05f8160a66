// Package scheduler runs one independent worker per configured
// certificate, serializing protocol traffic per account and retrying
// failed passes with exponential backoff (spec.md §4.5), adapted from the
// teacher's ticker-driven job scheduler.
package scheduler

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task describes one certificate the scheduler keeps renewed.
type Task struct {
	Name         string
	Account      string
	RenewalDelay time.Duration
}

// Outcome is what RenewFunc reports back after one renewal pass.
type Outcome struct {
	Success  bool
	NotAfter time.Time // the new certificate's expiry, used to compute the next wake
	Err      error
}

// RenewFunc performs one full issuance/renewal pass for a certificate
// (spec.md §4.4's state machine), returning whether it succeeded and the
// resulting certificate's expiry.
type RenewFunc func(ctx context.Context, task Task) Outcome

// PostOperationFunc runs post-operation hooks after a pass, success or
// failure (spec.md §4.5 step 3/4).
type PostOperationFunc func(ctx context.Context, task Task, success bool)

const (
	minRetryBackoff = 5 * time.Minute
	maxRetryBackoff = 24 * time.Hour
)

// Scheduler owns one worker goroutine per Task, the account mutexes those
// workers serialize through, and a global semaphore bounding how many
// renewal passes run at once process-wide.
type Scheduler struct {
	renew  RenewFunc
	postOp PostOperationFunc

	accountMus sync.Map // account name -> *sync.Mutex
	passSlots  chan struct{}

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownDone chan struct{}
	eg           *errgroup.Group

	tasks []Task
}

// New builds a Scheduler for the given tasks. concurrency bounds how many
// renewal passes may run at once process-wide.
func New(tasks []Task, renew RenewFunc, postOp PostOperationFunc, concurrency int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)
	if concurrency <= 0 {
		concurrency = runtime.NumCPU() * 2
	}

	return &Scheduler{
		renew:        renew,
		postOp:       postOp,
		passSlots:    make(chan struct{}, concurrency),
		ctx:          egCtx,
		cancel:       cancel,
		shutdownDone: make(chan struct{}),
		eg:           eg,
		tasks:        tasks,
	}
}

func (s *Scheduler) accountMutex(account string) *sync.Mutex {
	mu, _ := s.accountMus.LoadOrStore(account, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Start launches one goroutine per task, each sleeping until its next wake
// and driving renewal passes; it returns immediately.
func (s *Scheduler) Start() {
	for _, task := range s.tasks {
		task := task
		s.eg.Go(func() error {
			s.runWorker(task)
			return nil
		})
	}
	go func() {
		_ = s.eg.Wait()
		close(s.shutdownDone)
	}()
}

// Stop signals every worker to finish its current pass and waits up to
// ctx's deadline for them to do so (spec.md §5 "Cancellation").
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.shutdownDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runWorker(task Task) {
	var nextWake time.Time
	retryBackoff := minRetryBackoff

	for {
		sleep := time.Duration(0)
		if !nextWake.IsZero() {
			if d := time.Until(nextWake); d > 0 {
				sleep = d
			}
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(sleep):
		}
		if s.ctx.Err() != nil {
			return
		}

		select {
		case s.passSlots <- struct{}{}:
		case <-s.ctx.Done():
			return
		}

		// account_mutex(account_name).acquire() — blocks if another worker
		// uses the same account, even across endpoints (spec.md §4.5 step 1).
		mu := s.accountMutex(task.Account)
		mu.Lock()
		outcome := s.renew(s.ctx, task)
		mu.Unlock()
		<-s.passSlots

		if s.postOp != nil {
			s.postOp(s.ctx, task, outcome.Success)
		}

		if outcome.Success {
			retryBackoff = minRetryBackoff
			nextWake = outcome.NotAfter.Add(-task.RenewalDelay)
			continue
		}

		slog.Warn("renewal pass failed, scheduling retry", "certificate", task.Name, "err", outcome.Err, "retry_in", retryBackoff)
		candidate := time.Now().Add(retryBackoff)
		if !nextWake.IsZero() && nextWake.Before(candidate) {
			candidate = nextWake
		}
		nextWake = candidate
		retryBackoff *= 2
		if retryBackoff > maxRetryBackoff {
			retryBackoff = maxRetryBackoff
		}
	}
}
