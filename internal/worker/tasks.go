package worker

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

// TaskTicketSummary generates the case summary for a completed ticket.
const TaskTicketSummary = "tickets.summary"

// TicketSummaryPayload is the task body.
type TicketSummaryPayload struct {
	TicketNumber string `json:"ticketNumber"`
}

// NewTicketSummaryTask builds the task for number.
func NewTicketSummaryTask(number string) (*asynq.Task, error) {
	data, err := json.Marshal(TicketSummaryPayload{TicketNumber: number})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTicketSummary, data), nil
}

// ParseTicketSummaryPayload decodes the task body.
func ParseTicketSummaryPayload(task *asynq.Task) (TicketSummaryPayload, error) {
	var payload TicketSummaryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TicketSummaryPayload{}, err
	}
	if strings.TrimSpace(payload.TicketNumber) == "" {
		return TicketSummaryPayload{}, errors.New("ticket number missing")
	}
	return payload, nil
}
