package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskStatusPoll = "analysis.status_poll"

type StatusPollPayload struct {
	JobID    string `json:"jobId"`
	TenantID string `json:"tenantId"`
}

func NewStatusPollTask(payload StatusPollPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatusPoll, data), nil
}

func ParseStatusPollPayload(task *asynq.Task) (StatusPollPayload, error) {
	var payload StatusPollPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return StatusPollPayload{}, err
	}
	return payload, nil
}
