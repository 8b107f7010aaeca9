package memcache

// State is the connectivity state of a Storage.
type State int32

const (
	// Disconnected means every operation short-circuits to a miss or false
	// without touching the cluster.
	Disconnected State = iota
	// Connected means servers were registered and operations reach the
	// driver.
	Connected
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
