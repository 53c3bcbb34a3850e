// Package registry keeps the durable history of devices the user interacted with.
package registry

import "time"

// Entry is the history of one device
type Entry struct {
	Address         uint64    `yaml:"address" json:"address"`
	Name            string    `yaml:"name" json:"name"`
	FirstSeen       time.Time `yaml:"first_seen" json:"first_seen"`
	LastSeen        time.Time `yaml:"last_seen" json:"last_seen"`
	ConnectionCount int       `yaml:"connection_count" json:"connection_count"`
	LastSession     string    `yaml:"last_session,omitempty" json:"last_session,omitempty"`
}

// Registry is the persistence collaborator used around connect/disconnect.
type Registry interface {
	// RecordInteraction upserts the entry for address, bumping its connection count and last-seen time.
	RecordInteraction(address uint64, name string) error
	// History returns the entry for address, if any.
	History(address uint64) (Entry, bool, error)
	// All returns every entry, most recently seen first.
	All() ([]Entry, error)
	// Cleanup removes entries not seen for longer than olderThan and returns how many were removed.
	Cleanup(olderThan time.Duration) (int, error)
	Close() error
}
