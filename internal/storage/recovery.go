package storage

import (
	"fmt"
	"strings"
)

// ───────────────────────────────────────────────────────────────────────────
// Recovery — §4.8
// ───────────────────────────────────────────────────────────────────────────

// recoveryScheme is used to reconstruct a URI from a bare namespace name;
// the original scheme an object was created under isn't recoverable from
// the namespace name alone, so recovered objects are always addressed
// under this one afterward.
const recoveryScheme = "table"

// Recover drives the cleaner's migration logic in recovery mode over every
// object namespace found on d, then truncates the cache and transaction
// namespaces. Call once per Device at startup, after every Device sharing a
// transaction namespace has been opened and bound (§4.8).
func Recover(d *Device) error {
	names, err := d.kv.ListNamespaces()
	if err != nil {
		return err
	}

	cl := newCleaner(d)

	for _, name := range names {
		if !strings.HasPrefix(name, namespacePrefix) {
			continue
		}
		if name == txnNamespaceName {
			continue
		}
		if strings.HasSuffix(name, cacheNamespaceSuffix) {
			continue
		}

		objectName := strings.TrimPrefix(name, namespacePrefix)
		uri := fmt.Sprintf("%s:%s/%s", recoveryScheme, d.Name, objectName)

		obj, err := d.registry.Open(uri, OpenCreate)
		if err != nil {
			return err
		}

		if d.meta != nil {
			if metaStr, found, merr := d.meta.Get(uri); merr == nil && found {
				keyFormat, bitfield, perr := parseMetadataString(metaStr)
				if perr != nil {
					return perr
				}
				obj.configure(keyFormat, bitfield)
			}
		}

		txnMinSeen := uint64(0)
		haveTxnMin := false
		if err := cl.migrateObject(obj, cleanerModeRecovery, 0, &txnMinSeen, &haveTxnMin); err != nil {
			return err
		}
		if err := d.kv.Flush(); err != nil {
			return err
		}
		if err := cl.deleteMigrated(obj, cleanerModeRecovery, 0); err != nil {
			return err
		}
		if err := d.kv.TruncateNamespace(obj.Cache); err != nil {
			return err
		}

		if obj.keyFormat == KeyFormatRecordNumber {
			reseedAppendRecno(d, obj)
		}
	}

	if d.kv.NamespaceExists(txnNamespaceName) {
		if err := d.kv.TruncateNamespace(txnNamespaceName); err != nil {
			return err
		}
	}
	return nil
}

// reseedAppendRecno re-derives append_recno from the primary's last record
// after replay — the original's recovery path calls kvs_cursor_prev on the
// primary rather than trusting an in-memory counter a crash may have
// invalidated (§8 scenario 5).
func reseedAppendRecno(d *Device, obj *Object) {
	k, _, found, err := d.kv.Prev(obj.Primary, nil)
	if err != nil || !found {
		return
	}
	if recno, ok := decodeRecnoKey(k); ok {
		obj.seedAppendRecno(recno)
	}
}
