package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry owns the active monitors, one per backend task id
type Registry struct {
	client       StatusClient
	pollInterval time.Duration
	dismissDelay time.Duration

	mu       sync.RWMutex
	monitors map[string]*Monitor
}

// NewRegistry creates an empty registry. pollInterval is the base delay
// between status checks; dismissDelay is how long a completed monitor stays
// before it is removed automatically.
func NewRegistry(client StatusClient, pollInterval, dismissDelay time.Duration) *Registry {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Registry{
		client:       client,
		pollInterval: pollInterval,
		dismissDelay: dismissDelay,
		monitors:     make(map[string]*Monitor),
	}
}

// Add starts monitoring a task. Adding an id that is already tracked returns
// the existing monitor without starting a second polling loop.
func (r *Registry) Add(taskID string, cb Callbacks) (*Monitor, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task id must not be empty")
	}

	r.mu.Lock()
	if existing, ok := r.monitors[taskID]; ok {
		r.mu.Unlock()
		return existing, nil
	}

	monitor := newMonitor(taskID, r.client, cb, r.pollInterval, r.dismissDelay, r.Remove)
	r.monitors[taskID] = monitor
	r.mu.Unlock()

	monitor.start()
	return monitor, nil
}

// Remove stops and forgets a monitor. Unknown ids are a no-op.
func (r *Registry) Remove(taskID string) {
	r.mu.Lock()
	monitor, ok := r.monitors[taskID]
	if ok {
		delete(r.monitors, taskID)
	}
	r.mu.Unlock()

	if ok {
		monitor.Stop()
	}
}

// Get returns the monitor for a task id, if tracked
func (r *Registry) Get(taskID string) (*Monitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	monitor, ok := r.monitors[taskID]
	return monitor, ok
}

// Active returns the tracked task ids in sorted order
func (r *Registry) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.monitors))
	for id := range r.monitors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll stops every monitor and empties the registry
func (r *Registry) StopAll() {
	r.mu.Lock()
	monitors := r.monitors
	r.monitors = make(map[string]*Monitor)
	r.mu.Unlock()

	for _, monitor := range monitors {
		monitor.Stop()
	}
}
