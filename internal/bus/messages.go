package bus

import (
	"encoding/json"
	"time"

	"fintrack/internal/invalidation"
)

// MutationMessage broadcasts one mutation category to every fintrack
// process sharing the broker. Origin identifies the sender so a process
// can skip the categories it already applied locally.
type MutationMessage struct {
	Category  string    `json:"category"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMutationMessage(category invalidation.Category, origin string) *MutationMessage {
	return &MutationMessage{
		Category:  category.String(),
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

func (m *MutationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationMessageFromJSON(data []byte) (*MutationMessage, error) {
	var msg MutationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// shouldApply reports whether a received message warrants a local fan-out.
// A process's own broadcasts come back around on the shared queue and must
// not be applied twice.
func shouldApply(msg *MutationMessage, origin string) bool {
	return msg.Origin != origin && invalidation.Category(msg.Category).IsValid()
}
