// Package jobs holds the background tasks that run outside the request path.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSaldoIntegrity re-derives every budget line's totals from the
	// expense history and reports lines whose stored saldo drifted.
	TaskSaldoIntegrity = "ledger:saldo_integrity"
)

// SaldoIntegrityPayload narrows an integrity scan. An empty Proyecto scans
// every project.
type SaldoIntegrityPayload struct {
	Proyecto string `json:"proyecto,omitempty"`
}

// NewSaldoIntegrityTask constructs an Asynq task.
func NewSaldoIntegrityTask(payload SaldoIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSaldoIntegrity, data), nil
}
