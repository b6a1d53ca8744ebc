// File: internal/analysis/job.go
package analysis

import (
	"context"
	encjson "encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
)

// jobParams wires a JobController to its collaborators.
type jobParams struct {
	AnalysisID   string
	Fingerprint  string
	Submit       *schemas.SubmitResult
	Poller       StatusPoller
	PollInterval time.Duration
	PollTimeout  time.Duration
	Logger       *zap.Logger
	OnTerminal   func()
}

// JobController owns the state of exactly one analysis job. It is the
// sole writer of that state; consumers observe it through immutable
// JobSnapshot copies, either on demand (Snapshot) or as a stream
// (Subscribe). Status transitions are monotonic and one-directional: no
// terminal state ever re-enters pending or running.
//
// Every response is checked against a generation token captured when
// polling started, so a response that arrives after cancellation can
// never mutate disposed state.
type JobController struct {
	analysisID string
	poller     StatusPoller
	interval   time.Duration
	timeout    time.Duration
	logger     *zap.Logger
	onTerminal func()
	submit     *schemas.SubmitResult

	// epoch is bumped by Cancel; in-flight responses from an older
	// generation are discarded.
	epoch atomic.Uint64

	cancelLoop context.CancelFunc

	mu     sync.RWMutex
	snap   schemas.JobSnapshot
	result encjson.RawMessage
	err    error
	subs   map[int]chan schemas.JobSnapshot
	nextID int

	done         chan struct{}
	terminalOnce sync.Once
}

// statusRank orders the non-terminal statuses so a late "pending" poll
// can never regress a job that is already running.
var statusRank = map[schemas.JobStatus]int{
	schemas.JobPending: 0,
	schemas.JobRunning: 1,
}

func newJobController(p jobParams) *JobController {
	now := time.Now().UTC()
	id := p.AnalysisID
	if id == "" {
		id = uuid.NewString()
	}
	return &JobController{
		analysisID: p.AnalysisID,
		poller:     p.Poller,
		interval:   p.PollInterval,
		timeout:    p.PollTimeout,
		logger:     p.Logger.Named("job-controller").With(zap.String("job_id", id)),
		onTerminal: p.OnTerminal,
		submit:     p.Submit,
		snap: schemas.JobSnapshot{
			ID:          id,
			Fingerprint: p.Fingerprint,
			Status:      schemas.JobPending,
			SubmittedAt: now,
			UpdatedAt:   now,
		},
		subs: make(map[int]chan schemas.JobSnapshot),
		done: make(chan struct{}),
	}
}

// start launches the poll loop, bounded by the overall poll timeout.
func (jc *JobController) start() {
	ctx, cancel := context.WithTimeout(context.Background(), jc.timeout)
	jc.cancelLoop = cancel
	go jc.pollLoop(ctx, jc.epoch.Load())
}

// resolveSync finishes a job that never had a server-side component.
func (jc *JobController) resolveSync(result encjson.RawMessage) {
	jc.mu.Lock()
	jc.snap.Status = schemas.JobDone
	jc.snap.Progress = 100
	jc.snap.Message = "analysis completed synchronously"
	jc.snap.UpdatedAt = time.Now().UTC()
	jc.result = result
	snap := jc.snap
	jc.mu.Unlock()

	jc.broadcast(snap)
	jc.markTerminal()
}

// pollLoop drives the job to a terminal state. The rate limiter allows
// the first poll immediately and paces the rest at the configured
// interval; the context deadline enforces the overall ceiling.
func (jc *JobController) pollLoop(ctx context.Context, epoch uint64) {
	limiter := rate.NewLimiter(rate.Every(jc.interval), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			jc.finishFromContext(ctx, epoch)
			return
		}

		poll, err := jc.poller.PollStatus(ctx, jc.analysisID)
		if err != nil {
			if ctx.Err() != nil {
				// The wait expired or the job was cancelled mid-flight.
				jc.finishFromContext(ctx, epoch)
				return
			}
			jc.failWith(epoch, err)
			return
		}

		cont := jc.apply(epoch, poll)
		if !cont {
			return
		}
	}
}

// apply folds one poll response into the job state. Returns false when
// polling must stop: the response was stale, or the job is terminal.
func (jc *JobController) apply(epoch uint64, poll *schemas.PollResponse) bool {
	jc.mu.Lock()
	if epoch != jc.epoch.Load() || jc.snap.Status.Terminal() {
		jc.mu.Unlock()
		return false
	}

	jc.snap.UpdatedAt = time.Now().UTC()
	jc.snap.Message = poll.Message
	if p := clampProgress(poll.Progress); p > jc.snap.Progress {
		jc.snap.Progress = p
	}

	switch poll.Status {
	case schemas.JobDone:
		jc.snap.Status = schemas.JobDone
		jc.snap.Progress = 100
		jc.result = poll.Result
	case schemas.JobError:
		jc.snap.Status = schemas.JobError
		jc.err = fmt.Errorf("analysis failed: %s", poll.Message)
	case schemas.JobPending, schemas.JobRunning:
		if statusRank[poll.Status] >= statusRank[jc.snap.Status] {
			jc.snap.Status = poll.Status
		}
	default:
		// Unknown status from a newer backend; keep the current one.
	}

	snap := jc.snap
	jc.mu.Unlock()

	jc.broadcast(snap)
	if snap.Status.Terminal() {
		jc.logger.Info("Job reached terminal state", zap.String("status", string(snap.Status)))
		jc.markTerminal()
		return false
	}
	jc.logger.Debug("Job progress",
		zap.String("status", string(snap.Status)), zap.Int("progress", snap.Progress))
	return true
}

// failWith ends the job on a poll transport failure.
func (jc *JobController) failWith(epoch uint64, err error) {
	jc.mu.Lock()
	if epoch != jc.epoch.Load() || jc.snap.Status.Terminal() {
		jc.mu.Unlock()
		return
	}
	jc.snap.Status = schemas.JobError
	jc.snap.Message = err.Error()
	jc.snap.UpdatedAt = time.Now().UTC()
	jc.err = err
	snap := jc.snap
	jc.mu.Unlock()

	jc.logger.Warn("Job failed", zap.Error(err))
	jc.broadcast(snap)
	jc.markTerminal()
}

// finishFromContext translates a context end into the matching terminal
// state: deadline exceeded means the client-enforced timeout fired,
// anything else is a cancellation.
func (jc *JobController) finishFromContext(ctx context.Context, epoch uint64) {
	jc.mu.Lock()
	if epoch != jc.epoch.Load() || jc.snap.Status.Terminal() {
		jc.mu.Unlock()
		return
	}
	if ctx.Err() == context.DeadlineExceeded {
		jc.snap.Status = schemas.JobTimedOut
		jc.snap.Message = "analysis did not finish within the polling ceiling"
		jc.err = schemas.ErrTimeout
	} else {
		jc.snap.Status = schemas.JobCancelled
		jc.snap.Message = "analysis cancelled"
		jc.err = schemas.ErrJobCancelled
	}
	jc.snap.UpdatedAt = time.Now().UTC()
	snap := jc.snap
	jc.mu.Unlock()

	jc.logger.Info("Job ended without server result", zap.String("status", string(snap.Status)))
	jc.broadcast(snap)
	jc.markTerminal()
}

// Cancel halts polling immediately and releases the loop's timers. Safe
// to call from any goroutine, any number of times, including mid-flight:
// the epoch bump guarantees a response already on the wire is discarded.
func (jc *JobController) Cancel() {
	jc.epoch.Add(1)

	jc.mu.Lock()
	if jc.snap.Status.Terminal() {
		jc.mu.Unlock()
		return
	}
	jc.snap.Status = schemas.JobCancelled
	jc.snap.Message = "analysis cancelled"
	jc.snap.UpdatedAt = time.Now().UTC()
	jc.err = schemas.ErrJobCancelled
	snap := jc.snap
	jc.mu.Unlock()

	jc.broadcast(snap)
	jc.markTerminal()
}

// markTerminal runs the one-time terminal bookkeeping.
func (jc *JobController) markTerminal() {
	jc.terminalOnce.Do(func() {
		if jc.cancelLoop != nil {
			jc.cancelLoop()
		}
		// Release the single-flight slot before waking waiters, so a
		// waiter that immediately resubmits gets a fresh job.
		if jc.onTerminal != nil {
			jc.onTerminal()
		}
		close(jc.done)
	})
}

// Snapshot returns a read-only copy of the current job state.
func (jc *JobController) Snapshot() schemas.JobSnapshot {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	return jc.snap
}

// SubmitResult returns the submission response this job was born from.
func (jc *JobController) SubmitResult() *schemas.SubmitResult {
	return jc.submit
}

// Done is closed when the job reaches a terminal state.
func (jc *JobController) Done() <-chan struct{} {
	return jc.done
}

// Subscribe registers for snapshot updates. The channel is buffered;
// when a subscriber lags, intermediate snapshots are dropped rather
// than blocking the controller — Snapshot() always has the latest.
func (jc *JobController) Subscribe() (<-chan schemas.JobSnapshot, func()) {
	ch := make(chan schemas.JobSnapshot, 8)

	jc.mu.Lock()
	id := jc.nextID
	jc.nextID++
	jc.subs[id] = ch
	jc.mu.Unlock()

	unsubscribe := func() {
		jc.mu.Lock()
		if _, ok := jc.subs[id]; ok {
			delete(jc.subs, id)
			close(ch)
		}
		jc.mu.Unlock()
	}
	return ch, unsubscribe
}

// broadcast fans a snapshot out to subscribers without blocking.
func (jc *JobController) broadcast(snap schemas.JobSnapshot) {
	jc.mu.RLock()
	defer jc.mu.RUnlock()
	for _, ch := range jc.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Wait blocks until the job is terminal or the context ends. On success
// it returns the raw analysis result payload for normalization.
func (jc *JobController) Wait(ctx context.Context) (encjson.RawMessage, error) {
	select {
	case <-jc.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	jc.mu.RLock()
	defer jc.mu.RUnlock()
	if jc.err != nil {
		return nil, jc.err
	}
	return jc.result, nil
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
