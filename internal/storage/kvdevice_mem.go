package storage

import (
	"sort"
	"sync"
)

// ───────────────────────────────────────────────────────────────────────────
// memKVDevice — in-memory reference KVDevice
// ───────────────────────────────────────────────────────────────────────────
//
// A sorted-map store protected by a single RWMutex, in the style of the
// teacher repo's map+sync.RWMutex storage backends. This is the only
// KVDevice this repository ships; a real host supplies its own disk-
// resident implementation against the same interface.

type memNamespace struct {
	keys []string // sorted, kept in sync with vals
	vals map[string][]byte
}

func newMemNamespace() *memNamespace {
	return &memNamespace{vals: make(map[string][]byte)}
}

func (ns *memNamespace) indexOf(key string) (int, bool) {
	i := sort.SearchStrings(ns.keys, key)
	return i, i < len(ns.keys) && ns.keys[i] == key
}

func (ns *memNamespace) put(key string, value []byte) {
	i, found := ns.indexOf(key)
	if found {
		ns.vals[key] = value
		return
	}
	ns.keys = append(ns.keys, "")
	copy(ns.keys[i+1:], ns.keys[i:])
	ns.keys[i] = key
	ns.vals[key] = value
}

func (ns *memNamespace) delete(key string) {
	i, found := ns.indexOf(key)
	if !found {
		return
	}
	ns.keys = append(ns.keys[:i], ns.keys[i+1:]...)
	delete(ns.vals, key)
}

// memKVDevice implements KVDevice over in-process maps.
type memKVDevice struct {
	mu         sync.RWMutex
	namespaces map[string]*memNamespace
}

// NewMemKVDevice returns an empty in-memory KVDevice.
func NewMemKVDevice() KVDevice {
	return &memKVDevice{namespaces: make(map[string]*memNamespace)}
}

func (d *memKVDevice) CreateNamespace(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.namespaces[name]; ok {
		return invalidArgf("namespace %q already exists", name)
	}
	d.namespaces[name] = newMemNamespace()
	return nil
}

func (d *memKVDevice) DropNamespace(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.namespaces[name]; !ok {
		return invalidArgf("namespace %q does not exist", name)
	}
	delete(d.namespaces, name)
	return nil
}

func (d *memKVDevice) RenameNamespace(oldName, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ns, ok := d.namespaces[oldName]
	if !ok {
		return invalidArgf("namespace %q does not exist", oldName)
	}
	if _, exists := d.namespaces[newName]; exists {
		return invalidArgf("namespace %q already exists", newName)
	}
	delete(d.namespaces, oldName)
	d.namespaces[newName] = ns
	return nil
}

func (d *memKVDevice) TruncateNamespace(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.namespaces[name]; !ok {
		return invalidArgf("namespace %q does not exist", name)
	}
	d.namespaces[name] = newMemNamespace()
	return nil
}

func (d *memKVDevice) NamespaceExists(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.namespaces[name]
	return ok
}

func (d *memKVDevice) ListNamespaces() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.namespaces))
	for name := range d.namespaces {
		names = append(names, name)
	}
	return names, nil
}

func (d *memKVDevice) namespace(name string) (*memNamespace, error) {
	ns, ok := d.namespaces[name]
	if !ok {
		return nil, invalidArgf("namespace %q does not exist", name)
	}
	return ns, nil
}

func (d *memKVDevice) Get(namespace string, key []byte) ([]byte, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ns, err := d.namespace(namespace)
	if err != nil {
		return nil, false, err
	}
	v, ok := ns.vals[string(key)]
	return v, ok, nil
}

func (d *memKVDevice) Put(namespace string, key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ns, err := d.namespace(namespace)
	if err != nil {
		return err
	}
	cp := append([]byte(nil), value...)
	ns.put(string(key), cp)
	return nil
}

func (d *memKVDevice) Delete(namespace string, key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ns, err := d.namespace(namespace)
	if err != nil {
		return err
	}
	ns.delete(string(key))
	return nil
}

func (d *memKVDevice) Next(namespace string, key []byte) ([]byte, []byte, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ns, err := d.namespace(namespace)
	if err != nil {
		return nil, nil, false, err
	}
	var idx int
	if key == nil {
		idx = 0
	} else {
		i, found := ns.indexOf(string(key))
		if found {
			idx = i + 1
		} else {
			idx = i
		}
	}
	if idx >= len(ns.keys) {
		return nil, nil, false, nil
	}
	k := ns.keys[idx]
	return []byte(k), append([]byte(nil), ns.vals[k]...), true, nil
}

func (d *memKVDevice) Prev(namespace string, key []byte) ([]byte, []byte, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ns, err := d.namespace(namespace)
	if err != nil {
		return nil, nil, false, err
	}
	var idx int
	if key == nil {
		idx = len(ns.keys) - 1
	} else {
		i, _ := ns.indexOf(string(key))
		idx = i - 1
	}
	if idx < 0 || idx >= len(ns.keys) {
		return nil, nil, false, nil
	}
	k := ns.keys[idx]
	return []byte(k), append([]byte(nil), ns.vals[k]...), true, nil
}

func (d *memKVDevice) Flush() error { return nil }
func (d *memKVDevice) Close() error { return nil }
