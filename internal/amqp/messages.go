package amqp

import (
	"encoding/json"
	"time"

	"resto/internal/reports"
)

// StatementReadyMessage carries a generated statement to the downstream
// document renderer. The full numeric payload travels with the message so
// the renderer never re-reads the ledger and always formats the exact
// totals the caller saw.
type StatementReadyMessage struct {
	ScopeID   int64             `json:"scope_id"`
	Statement reports.Statement `json:"statement"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewStatementReadyMessage(scopeID int64, st reports.Statement) *StatementReadyMessage {
	return &StatementReadyMessage{
		ScopeID:   scopeID,
		Statement: st,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StatementReadyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StatementReadyMessageFromJSON creates a message from JSON bytes
func StatementReadyMessageFromJSON(data []byte) (*StatementReadyMessage, error) {
	var msg StatementReadyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
