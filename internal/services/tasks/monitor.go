// Package tasks tracks the backend's asynchronous jobs. A Registry owns one
// Monitor per task id; each monitor polls the status endpoint until the task
// reaches a terminal state, then reports through its callbacks.
package tasks

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"casetrack-desktop/internal/api"
)

// NotFoundMessage is reported when the backend no longer knows the task
const NotFoundMessage = "La tarea no existe o ya fue completada"

// StatusClient fetches one status snapshot for a task
type StatusClient interface {
	TaskStatus(taskID string) (*api.TaskStatus, error)
}

// Callbacks receive the monitor's lifecycle events. All fields are optional.
// Callbacks run on the monitor's goroutine and must not block.
type Callbacks struct {
	OnUpdate   func(status *api.TaskStatus)
	OnComplete func(result map[string]any)
	OnError    func(message string)
}

// Monitor polls one background task until it finishes
type Monitor struct {
	taskID       string
	client       StatusClient
	callbacks    Callbacks
	baseInterval time.Duration
	dismissDelay time.Duration
	onDismiss    func(taskID string)

	mu       sync.Mutex
	interval time.Duration
	status   *api.TaskStatus
	failure  string
	terminal bool
	stopped  bool
	dismiss  *time.Timer

	cancel context.CancelFunc
	done   chan struct{}
}

func newMonitor(taskID string, client StatusClient, cb Callbacks, interval, dismissDelay time.Duration, onDismiss func(string)) *Monitor {
	return &Monitor{
		taskID:       taskID,
		client:       client,
		callbacks:    cb,
		baseInterval: interval,
		dismissDelay: dismissDelay,
		onDismiss:    onDismiss,
		interval:     interval,
		done:         make(chan struct{}),
	}
}

// start launches the polling loop. The first poll happens immediately.
func (m *Monitor) start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		if !m.poll() {
			return
		}

		m.mu.Lock()
		wait := m.interval
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// poll performs one status request. Returns false when polling must stop.
// Requests are strictly sequential: the next one is scheduled only after
// this one finished.
func (m *Monitor) poll() bool {
	status, err := m.client.TaskStatus(m.taskID)

	// A response that lands after Stop belongs to a dismissed monitor and
	// must not mutate state or reach the callbacks.
	if m.isStopped() {
		return false
	}

	if err != nil {
		return m.handlePollError(err)
	}

	m.mu.Lock()
	m.status = status
	m.interval = m.baseInterval
	m.mu.Unlock()

	if m.callbacks.OnUpdate != nil {
		m.callbacks.OnUpdate(status)
	}

	switch status.Status {
	case "completed":
		if m.callbacks.OnComplete != nil {
			m.callbacks.OnComplete(status.Result)
		}
		m.finish("")
		m.scheduleDismiss()
		return false
	case "failed":
		if m.callbacks.OnError != nil {
			m.callbacks.OnError(status.Message)
		}
		m.finish(status.Message)
		return false
	default:
		return true
	}
}

func (m *Monitor) handlePollError(err error) bool {
	if errors.Is(err, api.ErrTaskNotFound) {
		if m.callbacks.OnError != nil {
			m.callbacks.OnError(NotFoundMessage)
		}
		m.finish(NotFoundMessage)
		return false
	}

	if isTimeout(err) {
		m.mu.Lock()
		m.interval *= 2
		wait := m.interval
		m.mu.Unlock()
		log.Printf("WARNING: task %s status check timed out, retrying in %v", m.taskID, wait)
		return true
	}

	if m.callbacks.OnError != nil {
		m.callbacks.OnError(err.Error())
	}
	m.finish(err.Error())
	return false
}

func (m *Monitor) finish(failure string) {
	m.mu.Lock()
	m.terminal = true
	m.failure = failure
	m.mu.Unlock()
}

// scheduleDismiss removes the completed monitor from its registry after the
// dismiss delay, mirroring how a finished progress panel fades out.
func (m *Monitor) scheduleDismiss() {
	if m.onDismiss == nil || m.dismissDelay <= 0 {
		return
	}
	m.mu.Lock()
	m.dismiss = time.AfterFunc(m.dismissDelay, func() {
		m.onDismiss(m.taskID)
	})
	m.mu.Unlock()
}

// Stop cancels polling and any pending dismissal. An in-flight status
// request is allowed to finish but its response is discarded. Safe to call
// repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel := m.cancel
	dismiss := m.dismiss
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if dismiss != nil {
		dismiss.Stop()
	}
}

func (m *Monitor) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// TaskID returns the id of the task being monitored
func (m *Monitor) TaskID() string {
	return m.taskID
}

// Status returns the most recent status snapshot, or nil before the first
// successful poll.
func (m *Monitor) Status() *api.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Finished reports whether the monitor reached a terminal state, and the
// failure message when it ended in error.
func (m *Monitor) Finished() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminal, m.failure
}

// Done is closed when the polling loop has exited
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// isTimeout classifies transient errors that warrant continued polling at a
// slower pace.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "timeout")
}
