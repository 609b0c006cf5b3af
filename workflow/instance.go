package workflow

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle state of one workflow instance
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	// StatusHalted means a stage routed off the happy path (e.g. a bid
	// card sent to review); the instance terminated without failing
	StatusHalted    Status = "halted"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// StageState is the terminal state of one stage within an instance
type StageState string

const (
	StageCompleted StageState = "completed"
	StageFailed    StageState = "failed"
	StageTimedOut  StageState = "timed_out"
)

// StageResult records how one stage ended
type StageResult struct {
	Stage      string     `json:"stage"`
	State      StageState `json:"state"`
	Error      string     `json:"error,omitempty"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Instance is one end-to-end execution of a pipeline for a single project.
// Its id threads through every event and ephemeral-state write so results
// can be correlated and scratch state cleaned up.
type Instance struct {
	ID        string
	ProjectID string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	status  Status
	results []StageResult
	done    chan struct{}
}

func newInstance(id, projectID string) *Instance {
	ctx, cancel := context.WithCancel(context.Background())
	return &Instance{
		ID:        id,
		ProjectID: projectID,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		status:    StatusRunning,
		done:      make(chan struct{}),
	}
}

// Context is cancelled when the instance is cancelled; stages pass it to
// blocking calls so cancellation stays cooperative
func (i *Instance) Context() context.Context {
	return i.ctx
}

// Cancel requests cooperative cancellation: in-flight stages finish their
// current unit of work, then the pipeline stops before the next stage
func (i *Instance) Cancel() {
	i.cancel()
}

// Cancelled reports whether cancellation has been requested
func (i *Instance) Cancelled() bool {
	return i.ctx.Err() != nil
}

// Status returns the current lifecycle state
func (i *Instance) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// StageResults returns a copy of the recorded stage outcomes
func (i *Instance) StageResults() []StageResult {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]StageResult, len(i.results))
	copy(out, i.results)
	return out
}

// Done is closed when the instance reaches a terminal status
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

// Wait blocks until the instance terminates or the timeout elapses,
// returning the final status and whether it terminated in time
func (i *Instance) Wait(timeout time.Duration) (Status, bool) {
	select {
	case <-i.done:
		return i.Status(), true
	case <-time.After(timeout):
		return i.Status(), false
	}
}

func (i *Instance) recordStage(result StageResult) {
	i.mu.Lock()
	defer i.mu.Unlock()
	result.FinishedAt = time.Now()
	i.results = append(i.results, result)
}

// finish transitions to a terminal status exactly once
func (i *Instance) finish(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status != StatusRunning {
		return
	}
	i.status = status
	close(i.done)
}
