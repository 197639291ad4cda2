package types

// Event represents a typed event emitted during state transitions. Attributes
// carry string encoded values so the payload can cross the RPC boundary and
// the append-only log without schema coupling.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
