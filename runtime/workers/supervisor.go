package workers

import (
	"context"
	"flash-chat/contract"
	"flash-chat/errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RestartPolicy tells the supervisor what to do with a worker that failed.
// Delays grow exponentially from Interval up to MaxInterval. A worker that
// ran longer than MaxInterval before failing starts again from Interval.
type RestartPolicy struct {
	Enabled     bool
	Interval    time.Duration
	MaxInterval time.Duration
}

func (p RestartPolicy) delay(attempt int) time.Duration {
	d := p.Interval
	for i := 0; i < attempt && d < p.MaxInterval; i++ {
		d *= 2
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}

// Supervisor Own a context and a Cancel function
// Run each worker in a goroutine
// Check panics and errors
// Restart workers according to its RestartPolicy
// Shutdown properly if parent context is canceled
// Wait for the end of all goroutines via WaitGroup
type Supervisor struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	log     *slog.Logger
	policy  RestartPolicy
	workers []contract.Worker
}

func NewSupervisor(log *slog.Logger, policy RestartPolicy) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, policy: policy}
}

// Run starts every registered worker and blocks until all of them returned.
// If the parent cancels, we cancel.
// If WE call s.Stop(), only our children cancel.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	workers := s.workers
	s.mu.Unlock()
	defer cancel()

	for _, worker := range workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision.
// The worker is executed in a dedicated goroutine. If its Run method panics,
// the supervisor recovers and treats it as a failure. A failure in one
// worker must not stop the supervisor itself.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		attempt := 0
		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			startedAt := time.Now()
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			if !s.policy.Enabled {
				s.log.Error("Worker failed, restart disabled", "name", workerName, "error", err)
				return
			}

			if s.policy.MaxInterval > 0 && time.Since(startedAt) > s.policy.MaxInterval {
				attempt = 0
			}
			wait := s.policy.delay(attempt)
			attempt++
			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err, "in", wait)
			select {
			case <-ctx.Done():
				// Context canceled: priority stop.
				return
			case <-time.After(wait):
			}
		}
	}()
}

// Stop Cancel all goroutines listening channel for Ctx.Done
// Supervisor will wait for all goroutines to finish
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
