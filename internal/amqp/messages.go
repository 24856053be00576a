package amqp

import (
	"encoding/json"
	"time"
)

// RunCompletedMessage announces a finished merge run. Consumers fetch the
// details from storage by RunID.
type RunCompletedMessage struct {
	RunID      string    `json:"run_id"`
	Sources    []string  `json:"sources"`
	Failed     []string  `json:"failed,omitempty"`
	Entries    int       `json:"entries"`
	Mismatches int       `json:"mismatches"`
	Duplicates int       `json:"duplicates"`
	Months     int       `json:"months"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunCompletedMessageFromJSON parses a message published by PublishRunCompleted.
func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
