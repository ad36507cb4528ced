package storage

// ───────────────────────────────────────────────────────────────────────────
// Transaction Log — §4.7
// ───────────────────────────────────────────────────────────────────────────

const (
	txnCommittedByte = 'C'
	txnAbortedByte   = 'A'
)

// TxnLog records each transaction's final resolution — committed or
// aborted — in the shared transaction namespace. It is shared by every
// Device in a process; whichever Device creates the namespace owns it and
// closes it last (§4.7, §8 scenario 6).
type TxnLog struct {
	kv        KVDevice
	namespace string
}

// newTxnLog wraps an already-created namespace. Namespace creation is the
// caller's responsibility (Device.BindTransactionNamespace), since only the
// owning Device's KVDevice handle actually stores it.
func newTxnLog(kv KVDevice, namespace string) *TxnLog {
	return &TxnLog{kv: kv, namespace: namespace}
}

// Set records txnID's resolution. A commit is flushed before Set returns —
// the durability invariant a commit-notify depends on (§3: "a commit record
// is durable before the notifier returns success").
func (l *TxnLog) Set(txnID uint64, committed bool) error {
	key := encodeTxnID(txnID)
	b := byte(txnAbortedByte)
	if committed {
		b = txnCommittedByte
	}
	if err := l.kv.Put(l.namespace, key, []byte{b}); err != nil {
		return err
	}
	if committed {
		if err := l.kv.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// State reports whether txnID resolved, and how.
func (l *TxnLog) State(txnID uint64) (committed, aborted, resolved bool, err error) {
	v, found, err := l.kv.Get(l.namespace, encodeTxnID(txnID))
	if err != nil {
		return false, false, false, err
	}
	if !found || len(v) == 0 {
		return false, false, false, nil
	}
	switch v[0] {
	case txnCommittedByte:
		return true, false, true, nil
	case txnAbortedByte:
		return false, true, true, nil
	default:
		return false, false, false, ioErrorf("transaction log: corrupt record for txn %d", txnID)
	}
}

// Clean deletes every transaction record with id < txnMin — everything no
// running transaction could still need the resolution of (§4.6 step 5).
func (l *TxnLog) Clean(txnMin uint64) error {
	var cursor []byte
	for {
		k, _, found, err := l.kv.Next(l.namespace, cursor)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		id, err := decodeTxnID(k)
		if err != nil {
			return err
		}
		next := append([]byte(nil), k...)
		if id < txnMin {
			if err := l.kv.Delete(l.namespace, k); err != nil {
				return err
			}
		}
		cursor = next
	}
}

func encodeTxnID(id uint64) []byte {
	b := make([]byte, 8)
	nativeEndian.PutUint64(b, id)
	return b
}

func decodeTxnID(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, ioErrorf("transaction log: malformed key length %d", len(b))
	}
	return nativeEndian.Uint64(b), nil
}
