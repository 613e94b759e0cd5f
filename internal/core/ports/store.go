package ports

// Cache namespaces. Entries are keyed by node name within a namespace.
const (
	// NamespaceObjects holds built target values and import snapshots.
	NamespaceObjects = "objects"
	// NamespaceMeta holds fingerprint records.
	NamespaceMeta = "meta"
	// NamespaceConfig holds the serialized plan, graph and run settings.
	NamespaceConfig = "config"
)

// Store is the opaque content-addressed key/value store the engine builds
// against. Implementations must be safe for concurrent reads and for
// concurrent writes to distinct keys.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type Store interface {
	// Get retrieves the value for a key. Returns nil, nil if absent.
	Get(key, namespace string) ([]byte, error)

	// Set stores the value for a key, overwriting any previous value.
	Set(key, namespace string, value []byte) error

	// Exists reports whether the key is present.
	Exists(key, namespace string) (bool, error)

	// List returns all keys in the namespace, sorted.
	List(namespace string) ([]string, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(key, namespace string) error
}
