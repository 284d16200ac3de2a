package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskLeadBackupSync = "leads.backup_sync"

// LeadBackupSyncPayload carries the discovery window. Zero means the job default.
type LeadBackupSyncPayload struct {
	LookbackSeconds int64 `json:"lookbackSeconds"`
}

func (p LeadBackupSyncPayload) Lookback() time.Duration {
	return time.Duration(p.LookbackSeconds) * time.Second
}

func NewLeadBackupSyncTask(lookback time.Duration) (*asynq.Task, error) {
	if lookback < 0 {
		return nil, fmt.Errorf("negative lookback %s", lookback)
	}
	data, err := json.Marshal(LeadBackupSyncPayload{LookbackSeconds: int64(lookback / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadBackupSync, data), nil
}

func ParseLeadBackupSyncPayload(task *asynq.Task) (LeadBackupSyncPayload, error) {
	var payload LeadBackupSyncPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadBackupSyncPayload{}, err
	}
	if payload.LookbackSeconds < 0 {
		return LeadBackupSyncPayload{}, fmt.Errorf("negative lookback %d", payload.LookbackSeconds)
	}
	return payload, nil
}
