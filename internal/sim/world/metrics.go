package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Actors    int `json:"actors"`
	Connected int `json:"connected"`
	Entities  int `json:"entities"`
	Frames    int `json:"frames"`

	PendingTasks int    `json:"pending_tasks"`
	TasksRan     uint64 `json:"tasks_ran"`
	TasksAborted uint64 `json:"tasks_aborted"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (w *World) publishMetrics(tick uint64, stepMS float64) {
	connected := 0
	for _, a := range w.actors {
		if a.Connected {
			connected++
		}
	}
	w.metrics.Store(WorldMetrics{
		Tick:         tick,
		Actors:       len(w.actors),
		Connected:    connected,
		Entities:     len(w.entities),
		Frames:       w.frames.Len(),
		PendingTasks: w.queue.Len(),
		TasksRan:     w.tasksRan,
		TasksAborted: w.tasksAborted,
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: stepMS,
	})
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
