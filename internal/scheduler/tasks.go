package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskCadenceSweep = "cadence.sweep.run"

const TaskCallbackDue = "cadence.callback.due"

type CadenceSweepPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
	Trigger     string    `json:"trigger"`
}

type CallbackDuePayload struct {
	LeadID         string `json:"leadId"`
	OrganizationID string `json:"organizationId"`
}

func NewCadenceSweepTask(payload CadenceSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCadenceSweep, data), nil
}

func ParseCadenceSweepPayload(task *asynq.Task) (CadenceSweepPayload, error) {
	var payload CadenceSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CadenceSweepPayload{}, err
	}
	return payload, nil
}

func NewCallbackDueTask(payload CallbackDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCallbackDue, data), nil
}

func ParseCallbackDuePayload(task *asynq.Task) (CallbackDuePayload, error) {
	var payload CallbackDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CallbackDuePayload{}, err
	}
	return payload, nil
}
