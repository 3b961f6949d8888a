package pool

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	StepRecords         = "records"
	StepSettings        = "settings"
	StepLastRecord      = "last-record"
	StepBackgroundImage = "background-image"
	StepKeepConnection  = "keep-connection"
	StepSortOrder       = "sort-order"
	StepSensor          = "sensor"
	StepSensorState     = "sensor-state"
	StepQueue           = "queue"
	StepGlobalState     = "global-state"
	StepNotify          = "notify"
)

// PartialFailure reports the steps of a fan-out operation that failed while others succeeded.
type PartialFailure struct {
	Op       string
	SensorID string
	Failed   map[string]error
}

func (e *PartialFailure) Error() string {
	steps := make([]string, 0, len(e.Failed))
	for step, err := range e.Failed {
		steps = append(steps, fmt.Sprintf("%s: %s", step, err.Error()))
	}
	sort.Strings(steps)

	target := e.Op
	if e.SensorID != "" {
		target = fmt.Sprintf("%s %s", e.Op, e.SensorID)
	}

	return fmt.Sprintf("%s partially failed (%s)", target, strings.Join(steps, "; "))
}

func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// CleanupResult is the outcome of a collect-and-continue operation.
type CleanupResult struct {
	Op        string
	SensorID  string
	Completed []string
	Failed    map[string]error

	mu sync.Mutex
}

func newResult(op, sensorID string) *CleanupResult {
	return &CleanupResult{Op: op, SensorID: sensorID, Failed: map[string]error{}}
}

func (r *CleanupResult) record(step string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.Failed[step] = err
		return
	}
	r.Completed = append(r.Completed, step)
}

func (r *CleanupResult) Ok(step string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, failed := r.Failed[step]
	return !failed
}

// Err is nil when every step completed, otherwise a *PartialFailure.
func (r *CleanupResult) Err() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Failed) == 0 {
		return nil
	}

	failed := make(map[string]error, len(r.Failed))
	for k, v := range r.Failed {
		failed[k] = v
	}

	return &PartialFailure{Op: r.Op, SensorID: r.SensorID, Failed: failed}
}

func (r *CleanupResult) failedSteps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := make([]string, 0, len(r.Failed))
	for step := range r.Failed {
		steps = append(steps, step)
	}
	sort.Strings(steps)

	return steps
}
