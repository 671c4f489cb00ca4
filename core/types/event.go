package types

// Event represents a typed event emitted during state transitions. Height and
// Sequence locate the event inside the block that produced it.
type Event struct {
	Type       string            `json:"type"`
	Height     uint64            `json:"height,omitempty"`
	Sequence   uint64            `json:"sequence,omitempty"`
	Attributes map[string]string `json:"attributes"`
}
