package storage

import "sync"

// ───────────────────────────────────────────────────────────────────────────
// Object Registry — §4.4
// ───────────────────────────────────────────────────────────────────────────

// OpenFlags mirror the host's open_cursor/drop/rename/truncate flag bits.
type OpenFlags int

const (
	// OpenCreate allows Open to create the Object if it does not exist.
	// Drop, Rename and Truncate in this file do not pass it: they only
	// target an Object already in the registry.
	OpenCreate OpenFlags = 1 << iota
	// OpenBusy fails with a busy error if the Object already exists and
	// has open cursors.
	OpenBusy
	// OpenGlobal keeps the registry's global lock held on return; the
	// caller is responsible for releasing it. Used by Drop and Rename,
	// which must hold the device exclusively while they unlink/rename
	// namespaces out from under the Object.
	OpenGlobal
	// OpenTruncate truncates both namespaces immediately after creating
	// them — only meaningful the first time an Object is created.
	OpenTruncate
)

// Registry holds the Objects known to one Device, keyed by URI.
type Registry struct {
	mu      sync.RWMutex // the Device's global lock
	objects map[string]*Object
	device  *Device
}

func newRegistry(d *Device) *Registry {
	return &Registry{objects: make(map[string]*Object), device: d}
}

// createOrOpenNamespace creates name if it is not already present — CREATE
// in the host's sense is "create if missing, reuse if present" (the case a
// restart-without-catalog-loss or recovery replay needs), not "must not
// already exist".
func createOrOpenNamespace(kv KVDevice, name string) error {
	if kv.NamespaceExists(name) {
		return nil
	}
	return kv.CreateNamespace(name)
}

// Open looks up uri, creating the Object (and its two namespaces) if it does
// not exist. If flags&OpenGlobal is set, the registry's global lock is
// returned held and the caller must call r.mu.Unlock() once done; otherwise
// Open releases it before returning.
func (r *Registry) Open(uri string, flags OpenFlags) (*Object, error) {
	_, deviceName, objectName, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if deviceName != r.device.Name {
		return nil, invalidArgf("uri %q: not on device %q", uri, r.device.Name)
	}

	r.mu.Lock()

	if existing, ok := r.objects[uri]; ok {
		if flags&OpenBusy != 0 && existing.refs() > 0 {
			r.mu.Unlock()
			return nil, busyf("object %q has %d open cursor(s)", uri, existing.refs())
		}
		if flags&OpenGlobal == 0 {
			r.mu.Unlock()
		}
		return existing, nil
	}

	if flags&OpenCreate == 0 {
		r.mu.Unlock()
		return nil, notFoundf("object %q does not exist", uri)
	}

	obj := newObject(uri, deviceName, objectName)
	if err := createOrOpenNamespace(r.device.kv, obj.Primary); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if err := createOrOpenNamespace(r.device.kv, obj.Cache); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if flags&OpenTruncate != 0 || r.device.config.OpenTruncate {
		if err := r.device.kv.TruncateNamespace(obj.Primary); err != nil {
			r.mu.Unlock()
			return nil, err
		}
		if err := r.device.kv.TruncateNamespace(obj.Cache); err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}
	if err := r.device.kv.Flush(); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	r.objects[uri] = obj
	if flags&OpenGlobal == 0 {
		r.mu.Unlock()
	}
	return obj, nil
}

// Close evicts obj from the registry. The caller must already have ensured
// its reference count is zero.
func (r *Registry) Close(obj *Object) error {
	if obj.refs() != 0 {
		return invalidArgf("close %q: %d open cursor(s) remain", obj.URI, obj.refs())
	}
	r.mu.Lock()
	delete(r.objects, obj.URI)
	r.mu.Unlock()
	return nil
}

// Drop unlinks uri's namespaces and metadata entry. Any failure after the
// in-memory unlink is a panic: the catalog and the device have diverged.
func (r *Registry) Drop(uri string) error {
	obj, err := r.Open(uri, OpenBusy|OpenGlobal)
	if err != nil {
		return err
	}
	delete(r.objects, uri)
	defer r.mu.Unlock()

	if err := r.device.kv.DropNamespace(obj.Primary); err != nil {
		return panicf("drop %q: primary namespace unlink diverged from catalog: %v", uri, err)
	}
	if err := r.device.kv.DropNamespace(obj.Cache); err != nil {
		return panicf("drop %q: cache namespace unlink diverged from catalog: %v", uri, err)
	}
	if err := r.device.kv.Flush(); err != nil {
		return panicf("drop %q: flush after unlink failed: %v", uri, err)
	}
	if r.device.meta != nil {
		if err := r.device.meta.Delete(uri); err != nil {
			return panicf("drop %q: metadata delete after unlink failed: %v", uri, err)
		}
	}
	return nil
}

// Rename moves uri's namespaces and metadata entry to newURI, which must
// stay on the same device. Any failure from the first namespace rename on
// is a panic.
func (r *Registry) Rename(uri, newURI string) error {
	obj, err := r.Open(uri, OpenBusy|OpenGlobal)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	_, newDeviceName, newObjectName, err := ParseURI(newURI)
	if err != nil {
		return err
	}
	if newDeviceName != r.device.Name {
		return invalidArgf("rename %q: new uri %q must stay on device %q", uri, newURI, r.device.Name)
	}

	newPrimary := primaryNamespace(newObjectName)
	newCache := cacheNamespace(newObjectName)

	if err := r.device.kv.RenameNamespace(obj.Primary, newPrimary); err != nil {
		return panicf("rename %q -> %q: primary namespace rename failed: %v", uri, newURI, err)
	}
	if err := r.device.kv.RenameNamespace(obj.Cache, newCache); err != nil {
		return panicf("rename %q -> %q: cache namespace rename failed: %v", uri, newURI, err)
	}
	if err := r.device.kv.Flush(); err != nil {
		return panicf("rename %q -> %q: flush failed: %v", uri, newURI, err)
	}
	if r.device.meta != nil {
		if val, found, getErr := r.device.meta.Get(uri); getErr == nil && found {
			if err := r.device.meta.Delete(uri); err != nil {
				return panicf("rename %q -> %q: metadata delete failed: %v", uri, newURI, err)
			}
			if err := r.device.meta.Put(newURI, val); err != nil {
				return panicf("rename %q -> %q: metadata put failed: %v", uri, newURI, err)
			}
		}
	}

	delete(r.objects, uri)
	obj.URI = newURI
	obj.Name = newObjectName
	obj.Primary = newPrimary
	obj.Cache = newCache
	r.objects[newURI] = obj
	return nil
}

// Truncate empties both of uri's namespaces in place.
func (r *Registry) Truncate(uri string) error {
	obj, err := r.Open(uri, OpenBusy)
	if err != nil {
		return err
	}
	if err := r.device.kv.TruncateNamespace(obj.Primary); err != nil {
		return err
	}
	if err := r.device.kv.TruncateNamespace(obj.Cache); err != nil {
		return err
	}
	return nil
}

// list returns a snapshot of all URIs currently registered.
func (r *Registry) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.objects))
	for uri := range r.objects {
		out = append(out, uri)
	}
	return out
}
