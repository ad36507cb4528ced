package storage

import (
	"sync"
)

// ───────────────────────────────────────────────────────────────────────────
// Device Binding — §4.5
// ───────────────────────────────────────────────────────────────────────────

// KVPair is one key/value pair returned by namespace enumeration (DumpNamespace).
type KVPair struct {
	Key   []byte
	Value []byte
}

// Device binds one backing KV device: its configuration, its Objects
// (via Registry), the shared transaction namespace, and the background
// cleaner.
type Device struct {
	Name   string
	kv     KVDevice
	meta   MetaCatalog
	txn    TxnService
	config DeviceConfig

	registry *Registry

	txnLog     *TxnLog
	ownsTxnLog bool

	depMu      sync.Mutex
	dependents []*Device // other Devices bound to this one's txn namespace

	cleaner     *cleaner
	stopCleaner chan struct{}
	cleanerDone chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewDevice parses configString (§6) and constructs a Device bound to kv,
// txn, and meta. The transaction namespace is not yet bound — call
// BindTransactionNamespace or BindDevices before issuing any writes.
func NewDevice(name string, kv KVDevice, txn TxnService, meta MetaCatalog, configString string) (*Device, error) {
	cfg, err := ParseDeviceConfig(configString)
	if err != nil {
		return nil, err
	}
	d := &Device{
		Name:   name,
		kv:     kv,
		txn:    txn,
		meta:   meta,
		config: cfg,
	}
	d.registry = newRegistry(d)
	return d, nil
}

// BindTransactionNamespace binds d's shared transaction namespace. If owner
// is nil, d creates and owns the namespace itself; otherwise d borrows
// owner's already-bound TxnLog (§3: "the Transaction Namespace handle is
// shared among all Devices in the process").
func (d *Device) BindTransactionNamespace(owner *Device) error {
	if owner == nil || owner == d {
		if err := createOrOpenNamespace(d.kv, txnNamespaceName); err != nil {
			return err
		}
		d.txnLog = newTxnLog(d.kv, txnNamespaceName)
		d.ownsTxnLog = true
		return nil
	}
	if owner.txnLog == nil {
		return invalidArgf("device %q: owner %q has no bound transaction namespace", d.Name, owner.Name)
	}
	d.txnLog = owner.txnLog
	d.ownsTxnLog = false
	owner.depMu.Lock()
	owner.dependents = append(owner.dependents, d)
	owner.depMu.Unlock()
	return nil
}

// BindDevices binds devices[0] as the transaction-namespace owner and every
// other Device to the same namespace. Use this when opening a group of
// Devices that are meant to share one transaction store (§8 scenario 6).
func BindDevices(devices ...*Device) error {
	if len(devices) == 0 {
		return invalidArgf("bind devices: no devices given")
	}
	owner := devices[0]
	if err := owner.BindTransactionNamespace(nil); err != nil {
		return err
	}
	for _, d := range devices[1:] {
		if err := d.BindTransactionNamespace(owner); err != nil {
			return err
		}
	}
	return nil
}

// StartCleaner launches the background cleaner goroutine (§4.6). Call once
// per Device after its transaction namespace is bound.
func (d *Device) StartCleaner() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cleaner != nil {
		return
	}
	d.cleaner = newCleaner(d)
	d.stopCleaner = make(chan struct{})
	d.cleanerDone = make(chan struct{})
	go d.cleaner.loop(d.stopCleaner, d.cleanerDone)
}

// Create opens (creating if necessary) the Object at uri and registers its
// metadata string in the catalog.
func (d *Device) Create(uri string, keyFormat KeyFormat, bitfield bool, valueFormat string) error {
	obj, err := d.registry.Open(uri, OpenCreate)
	if err != nil {
		return err
	}
	obj.configure(keyFormat, bitfield)
	if d.meta != nil {
		kf := "u"
		if keyFormat == KeyFormatRecordNumber {
			kf = "r"
		}
		if err := d.meta.Put(uri, metadataString(kf, valueFormat)); err != nil {
			return err
		}
	}
	return nil
}

// Drop removes uri entirely (§4.4).
func (d *Device) Drop(uri string) error { return d.registry.Drop(uri) }

// Rename moves uri to newURI (§4.4).
func (d *Device) Rename(uri, newURI string) error { return d.registry.Rename(uri, newURI) }

// Truncate empties uri in place (§4.4).
func (d *Device) Truncate(uri string) error { return d.registry.Truncate(uri) }

// Checkpoint flushes the device to stable storage (§6: checkpoint is a real
// device-wide flush).
func (d *Device) Checkpoint() error { return d.kv.Flush() }

// Verify is explicitly out of scope (§6).
func (d *Device) Verify(uri string) error { return notSupportedf("verify is not supported") }

// DumpNamespace enumerates every key/value pair in an Object's primary or
// cache namespace, in ascending key order. Revived from the original's
// debug-only dump as an always-available operational command (cmd/kvsctl).
func (d *Device) DumpNamespace(namespace string) ([]KVPair, error) {
	var out []KVPair
	var cursor []byte
	for {
		k, v, found, err := d.kv.Next(namespace, cursor)
		if err != nil {
			return nil, err
		}
		if !found {
			return out, nil
		}
		out = append(out, KVPair{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		cursor = k
	}
}

// OpenCursor opens a Cursor on uri, creating the Object if necessary.
func (d *Device) OpenCursor(uri string, txnID uint64, cursorConfigString string) (*Cursor, error) {
	obj, err := d.registry.Open(uri, OpenCreate)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseCursorConfig(cursorConfigString)
	if err != nil {
		return nil, err
	}
	obj.addRef()
	return newCursor(d, obj, txnID, cfg), nil
}

// Close shuts the Device down. If it owns the transaction namespace, every
// dependent Device must already be closed (§8 scenario 6; the original's
// kvsowner ordering rule).
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	stopCleaner, cleanerDone := d.stopCleaner, d.cleanerDone
	d.mu.Unlock()

	if stopCleaner != nil {
		close(stopCleaner)
		<-cleanerDone
	}

	if d.ownsTxnLog {
		d.depMu.Lock()
		deps := append([]*Device(nil), d.dependents...)
		d.depMu.Unlock()
		for _, dep := range deps {
			dep.mu.Lock()
			depClosed := dep.closed
			dep.mu.Unlock()
			if !depClosed {
				d.mu.Lock()
				d.closed = false
				d.mu.Unlock()
				return busyf("device %q owns the transaction namespace; device %q is still open", d.Name, dep.Name)
			}
		}
	}

	return d.kv.Close()
}
