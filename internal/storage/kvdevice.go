package storage

// KVDevice is the external, non-transactional sorted key/value device the
// adapter layers transactional semantics on top of (§1, "out of scope").
// It offers only single-key point operations, ordered traversal, and a
// coarse "flush to stable" primitive — no transactions, no versioning.
//
// memKVDevice (in-memory, kvdevice_mem.go) ships with this repository as a
// reference/test double. A real host supplies its own, typically disk-
// resident, implementation.
type KVDevice interface {
	// CreateNamespace registers a new, empty namespace. Namespace names are
	// the fully-qualified WiredTiger.-prefixed names from §6.
	CreateNamespace(name string) error
	// DropNamespace removes a namespace and all its contents.
	DropNamespace(name string) error
	// RenameNamespace re-registers an existing namespace's contents under a
	// new name.
	RenameNamespace(oldName, newName string) error
	// TruncateNamespace empties a namespace in place.
	TruncateNamespace(name string) error
	// NamespaceExists reports whether a namespace has been created.
	NamespaceExists(name string) bool
	// ListNamespaces returns the names of every namespace currently
	// registered on the device, in no particular order.
	ListNamespaces() ([]string, error)

	// Get retrieves a value by key. found is false if the key is absent.
	Get(namespace string, key []byte) (value []byte, found bool, err error)
	// Put inserts or overwrites a key's value.
	Put(namespace string, key, value []byte) error
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(namespace string, key []byte) error

	// Next returns the smallest key strictly greater than key (or the
	// smallest key overall, when key is nil), within namespace.
	Next(namespace string, key []byte) (k, v []byte, found bool, err error)
	// Prev returns the largest key strictly less than key (or the largest
	// key overall, when key is nil), within namespace.
	Prev(namespace string, key []byte) (k, v []byte, found bool, err error)

	// Flush makes all prior writes durable — the device's "flush to
	// stable" primitive.
	Flush() error

	// Close releases any resources held by the device.
	Close() error
}
