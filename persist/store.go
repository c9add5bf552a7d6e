package persist

import "storefront/domain"

// Store is the durable local storage behind the synchronizer. It holds
// exactly one snapshot under one key.
type Store interface {
	Write(snapshot domain.PersistedSnapshot) error
	// Read returns ok=false when no snapshot exists. A corrupt
	// snapshot is an error; the synchronizer treats both as empty.
	Read() (domain.PersistedSnapshot, bool, error)
}
