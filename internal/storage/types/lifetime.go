package types

import "fmt"

// Lifetime represents a retention scope for metric records.
//
// The order of the constants is the traversal order used when merging a
// store across scopes: Ping first, then Application, then User. A metric
// recorded under a later lifetime overrides the same metric recorded under
// an earlier one.
type Lifetime int

const (
	// LifetimePing holds data until the next ping submission, after which
	// it is cleared.
	LifetimePing Lifetime = iota

	// LifetimeApplication holds data for the lifetime of the process.
	LifetimeApplication

	// LifetimeUser holds data across application runs.
	LifetimeUser
)

// String returns the string representation of the lifetime.
func (l Lifetime) String() string {
	switch l {
	case LifetimePing:
		return "ping"
	case LifetimeApplication:
		return "application"
	case LifetimeUser:
		return "user"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Valid reports whether l is one of the three defined lifetimes.
func (l Lifetime) Valid() bool {
	return l >= LifetimePing && l <= LifetimeUser
}

// Persistent reports whether records under this lifetime survive a process
// restart. Application-lifetime data is held in memory only.
func (l Lifetime) Persistent() bool {
	return l == LifetimePing || l == LifetimeUser
}

// ParseLifetime parses a string into a Lifetime.
func ParseLifetime(s string) (Lifetime, error) {
	switch s {
	case "ping":
		return LifetimePing, nil
	case "application":
		return LifetimeApplication, nil
	case "user":
		return LifetimeUser, nil
	default:
		return LifetimePing, fmt.Errorf("unknown lifetime: %s", s)
	}
}

// AllLifetimes returns all lifetimes in merge traversal order.
func AllLifetimes() []Lifetime {
	return []Lifetime{LifetimePing, LifetimeApplication, LifetimeUser}
}
