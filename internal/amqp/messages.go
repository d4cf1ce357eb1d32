package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage asks the backup worker to mirror one transaction to
// the spreadsheet. It carries only ids; the worker fetches the full row from
// the database so the backup always reflects the latest state.
type TransactionSyncMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionDeleteMessage asks the backup worker to drop a transaction's
// spreadsheet row. The database row is already gone, so enough of a snapshot
// travels with the message to locate the sheet row.
type TransactionDeleteMessage struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Date        time.Time `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewTransactionSyncMessage(id, userID string) *TransactionSyncMessage {
	return &TransactionSyncMessage{ID: id, UserID: userID, Timestamp: time.Now()}
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *TransactionDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionDeleteMessageFromJSON(data []byte) (*TransactionDeleteMessage, error) {
	var msg TransactionDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
