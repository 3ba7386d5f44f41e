package amqp

import (
	"encoding/json"
	"time"
)

// Mutation kinds carried on the wire.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ExpenseChangedMessage announces that one owner's expense collection
// changed. It carries identifiers only; consumers re-read the owner's
// current snapshot from storage, so a stale or duplicated message is
// harmless.
type ExpenseChangedMessage struct {
	OwnerID   string    `json:"owner_id"`
	ExpenseID string    `json:"expense_id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseChangedMessage(ownerID, expenseID, op string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		OwnerID:   ownerID,
		ExpenseID: expenseID,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
