package storage

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ───────────────────────────────────────────────────────────────────────────
// Object — §3 data model
// ───────────────────────────────────────────────────────────────────────────

// namespacePrefix is the WiredTiger.-style prefix the core reserves within
// a device (§6).
const namespacePrefix = "WiredTiger."

// txnNamespaceName is the fixed name of the shared transaction namespace.
const txnNamespaceName = namespacePrefix + "txn"

// cacheNamespaceSuffix marks an object's cache namespace.
const cacheNamespaceSuffix = ".cache"

// KeyFormat distinguishes byte-string keys from record-number keys (the
// latter's packing is delegated to the host, §1).
type KeyFormat int

const (
	KeyFormatByteString KeyFormat = iota
	KeyFormatRecordNumber
)

// ParseURI validates and splits a URI of the form scheme:device/object.
func ParseURI(uri string) (scheme, device, object string, err error) {
	schemeSep := strings.IndexByte(uri, ':')
	if schemeSep < 0 {
		return "", "", "", invalidArgf("uri %q: missing scheme", uri)
	}
	scheme = uri[:schemeSep]
	rest := uri[schemeSep+1:]
	if strings.HasPrefix(rest, "/") {
		return "", "", "", invalidArgf("uri %q: leading slash not allowed", uri)
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", "", "", invalidArgf("uri %q: missing device/object separator", uri)
	}
	device = rest[:slash]
	object = rest[slash+1:]
	if device == "" || object == "" {
		return "", "", "", invalidArgf("uri %q: device and object must be non-empty", uri)
	}
	return scheme, device, object, nil
}

// primaryNamespace returns the primary namespace name for an object.
func primaryNamespace(objectName string) string {
	return namespacePrefix + objectName
}

// cacheNamespace returns the cache namespace name for an object.
func cacheNamespace(objectName string) string {
	return namespacePrefix + objectName + cacheNamespaceSuffix
}

// Object is a logical table/file identified by a URI; it owns exactly one
// primary and one cache namespace on the device (§3).
type Object struct {
	URI        string
	DeviceName string
	Name       string

	Primary string // WiredTiger.<name>
	Cache   string // WiredTiger.<name>.cache

	mu sync.RWMutex // reader/writer lock guarding every field below

	refCount int

	configured bool
	keyFormat  KeyFormat
	bitfield   bool

	appendRecno uint64 // monotonic; meaningful only for record-number objects
	cacheInUse  bool   // set once the cache namespace has been written to

	bytesSinceClean atomic.Int64
	opsSinceClean   atomic.Int64
}

// newObject constructs an Object for the given URI components. It does not
// touch the device — callers open the namespaces separately.
func newObject(uri, deviceName, objectName string) *Object {
	return &Object{
		URI:        uri,
		DeviceName: deviceName,
		Name:       objectName,
		Primary:    primaryNamespace(objectName),
		Cache:      cacheNamespace(objectName),
	}
}

// configure sets the key-format/bitfield flags the first time an object is
// opened; subsequent calls are no-ops, matching the "configured-once" flag
// in §3.
func (o *Object) configure(keyFormat KeyFormat, bitfield bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.configured {
		return
	}
	o.keyFormat = keyFormat
	o.bitfield = bitfield
	o.configured = true
}

// nextAppendRecno atomically allocates the next record number.
func (o *Object) nextAppendRecno() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.appendRecno++
	return o.appendRecno
}

// bumpAppendRecno advances append_recno to at least recno, if it is not
// already there (§9: explicit recno updates above append_recno silently
// advance it — kept as-is per the Open Questions decision).
func (o *Object) bumpAppendRecno(recno uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if recno > o.appendRecno {
		o.appendRecno = recno
	}
}

// seedAppendRecno sets append_recno directly, used by recovery to re-seed
// it from the primary's last record (§4.8, Open Source feature E.3).
func (o *Object) seedAppendRecno(recno uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.appendRecno = recno
}

// setCacheInUseLocked records that the cache namespace now holds at least
// one entry. Callers must already hold o.mu for writing — this only
// assigns the field, it never acquires the lock itself.
func (o *Object) setCacheInUseLocked() {
	o.cacheInUse = true
}

// cacheInUseLocked reports whether the cache namespace is in use. Callers
// must already hold o.mu (read or write).
func (o *Object) cacheInUseLocked() bool {
	return o.cacheInUse
}

func (o *Object) recordCleanerActivity(bytes int64) {
	o.bytesSinceClean.Add(bytes)
	o.opsSinceClean.Add(1)
}

func (o *Object) resetCleanerCounters() {
	o.bytesSinceClean.Store(0)
	o.opsSinceClean.Store(0)
}

func (o *Object) exceedsCleanerThresholds(byteLimit, opsLimit int64) bool {
	return o.bytesSinceClean.Load() >= byteLimit || o.opsSinceClean.Load() >= opsLimit
}

func (o *Object) addRef() {
	o.mu.Lock()
	o.refCount++
	o.mu.Unlock()
}

func (o *Object) release() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refCount--
	return o.refCount
}

func (o *Object) refs() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.refCount
}

// metadataVersion is the major.minor compatibility tag embedded in every
// persisted metadata string; load refuses a mismatched major (§6).
const metadataVersion = "1.0"
const metadataMajor = "1"

// metadataString renders the persisted per-object metadata string (§6).
func metadataString(keyFormat, valueFormat string) string {
	return fmt.Sprintf("version=%s,key_format=%s,value_format=%s", metadataVersion, keyFormat, valueFormat)
}

// parseMetadataString recovers the key-format and bitfield-ness of an
// object from its persisted metadata string. Bitfield detection is a
// convention, not a full format-string parser: a value_format ending in "t"
// denotes a (possibly multi-bit) bitfield type, mirroring the host's own
// format-string grammar without reimplementing all of it here.
func parseMetadataString(s string) (keyFormat KeyFormat, bitfield bool, err error) {
	var version, kf, vf string
	for _, field := range strings.Split(s, ",") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "version":
			version = kv[1]
		case "key_format":
			kf = kv[1]
		case "value_format":
			vf = kv[1]
		}
	}
	if version != "" && !strings.HasPrefix(version, metadataMajor+".") {
		return 0, false, invalidArgf("metadata version %q incompatible with major %s", version, metadataMajor)
	}
	switch kf {
	case "r":
		keyFormat = KeyFormatRecordNumber
	case "u", "":
		keyFormat = KeyFormatByteString
	default:
		return 0, false, invalidArgf("metadata: unknown key_format %q", kf)
	}
	bitfield = vf != "" && strings.HasSuffix(vf, "t")
	return keyFormat, bitfield, nil
}
