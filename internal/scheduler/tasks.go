package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskSessionNudge is the per-session reminder, enqueued with ProcessAt when
// the orchestrator commits a slot.
const TaskSessionNudge = "sessions.nudge"

// TaskNudgeSweep is the fallback sweep for reminders the per-session path
// missed.
const TaskNudgeSweep = "sessions.nudge_sweep"

// TaskReconciliationRun triggers one payment reconciliation pass.
const TaskReconciliationRun = "reconciliation.run"

type SessionNudgePayload struct {
	SessionID string `json:"sessionId"`
}

func NewSessionNudgeTask(payload SessionNudgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionNudge, data), nil
}

func ParseSessionNudgePayload(task *asynq.Task) (SessionNudgePayload, error) {
	var payload SessionNudgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SessionNudgePayload{}, err
	}
	return payload, nil
}

func NewNudgeSweepTask() *asynq.Task {
	return asynq.NewTask(TaskNudgeSweep, nil)
}

func NewReconciliationRunTask() *asynq.Task {
	return asynq.NewTask(TaskReconciliationRun, nil)
}
