package engine

// EventKind identifies a run progress event.
type EventKind string

const (
	EventRunStart     EventKind = "run_start"
	EventTaskStart    EventKind = "task_start"
	EventTaskComplete EventKind = "task_complete"
	EventRunComplete  EventKind = "run_complete"
)

// Event is one progress notification during a run. Fields are populated
// according to Kind.
type Event struct {
	Kind  EventKind `json:"event"`
	RunID string    `json:"run_id"`

	// task_start / task_complete
	Task        string `json:"task,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
	ExecutionMS int64  `json:"execution_ms,omitempty"`

	// run_start
	Tasks []string `json:"tasks,omitempty"`

	// run_complete
	TotalTasks int   `json:"total_tasks,omitempty"`
	Successful int   `json:"successful,omitempty"`
	Failed     int   `json:"failed,omitempty"`
	Skipped    int   `json:"skipped,omitempty"`
	UpToDate   int   `json:"up_to_date,omitempty"`
	TotalMS    int64 `json:"total_ms,omitempty"`
}

// EventFunc receives run progress events. Calls are serialized, so the
// function does not need its own locking.
type EventFunc func(Event)

func (e *Engine) emit(ev Event) {
	if e.events == nil {
		return
	}
	e.eventMu.Lock()
	defer e.eventMu.Unlock()
	e.events(ev)
}
