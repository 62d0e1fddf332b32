package progress

// Status enumerates the lifecycle states a progress event can report.
type Status string

const (
	StatusStarted   Status = "started"
	StatusProgress  Status = "progress"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Event is one structured status update about a task. Progress values are
// 0-100 and non-decreasing per task by convention, not enforced.
type Event struct {
	TaskID   string  `json:"task_id,omitempty"`
	Service  string  `json:"service,omitempty"`
	Step     string  `json:"step,omitempty"`
	Status   Status  `json:"status,omitempty"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message,omitempty"`
	Output   any     `json:"output,omitempty"`
	Final    bool    `json:"final,omitempty"`
	TS       float64 `json:"ts,omitempty"`
}

// Terminal reports whether this event ends a task's stream: an explicit
// final flag, or the orchestrator's closing done marker.
func (e Event) Terminal() bool {
	if e.Final {
		return true
	}
	return e.Service == "orchestrator" && e.Step == "done"
}

// MapSubProgress maps a stage-internal done/total ratio onto the stage's
// [pmin, pmax] progress sub-range. done=0 yields pmin, done=total yields
// pmax, linear in between.
func MapSubProgress(done, total, pmin, pmax float64) float64 {
	if total <= 0 {
		return pmin
	}
	ratio := done / total
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return pmin + ratio*(pmax-pmin)
}
