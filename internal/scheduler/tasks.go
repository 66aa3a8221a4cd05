// Package scheduler runs the time-driven side of the engine: the recurring
// and reminder tick loops, and the asynq worker that processes inbound
// mailbox messages.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"invoicing_backend/internal/mailbox"
)

const TaskInboundEmail = "mailbox.inbound_email"

func NewInboundEmailTask(msg mailbox.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInboundEmail, data), nil
}

func ParseInboundEmailPayload(task *asynq.Task) (mailbox.Message, error) {
	var msg mailbox.Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return mailbox.Message{}, err
	}
	return msg, nil
}
