package config

// ConfigBackend abstracts where non-secret config is persisted. Values cross
// the boundary in their text form and are typed by the key table.
type ConfigBackend interface {
	// Lookup returns the stored text for key. ok is false when key is unset.
	Lookup(key string) (raw string, ok bool, err error)
	// Store persists v under key.
	Store(key string, v any) error
	Remove(key string) error
}
