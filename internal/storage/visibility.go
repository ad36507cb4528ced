package storage

// ───────────────────────────────────────────────────────────────────────────
// Cache Visibility
// ───────────────────────────────────────────────────────────────────────────
//
// These functions operate on a parsed chain (see chain.go) and the host's
// resolution/visibility predicates (see txnservice.go's TxnService). They
// never touch a device themselves — callers (cursor.go, cleaner.go,
// recovery.go) supply the predicates appropriate to their mode.

// isAbortedFunc reports whether a transaction ID resolved to aborted.
type isAbortedFunc func(txnID uint64) bool

// isCommittedFunc reports whether a transaction ID resolved to committed.
type isCommittedFunc func(txnID uint64) bool

// isVisibleFunc reports whether txnID's writes are visible to the current
// reader's snapshot.
type isVisibleFunc func(txnID uint64) bool

// mostRecentVisible scans entries back-to-front and returns the first
// non-aborted entry the reader's visibility predicate admits. ok is false
// if nothing qualifies.
func mostRecentVisible(entries []chainEntry, aborted isAbortedFunc, visible isVisibleFunc) (entry chainEntry, ok bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if aborted(e.TxnID) {
			continue
		}
		if visible(e.TxnID) {
			return e, true
		}
	}
	return chainEntry{}, false
}

// globallyVisibleAll is true iff every entry's txn_id is strictly less than
// oldest — no currently-running transaction could still need to see any
// entry in this chain.
func globallyVisibleAll(entries []chainEntry, oldest uint64) bool {
	for _, e := range entries {
		if e.TxnID >= oldest {
			return false
		}
	}
	return true
}

// lastCommitted scans back-to-front for the first entry whose transaction
// committed. Used only in recovery mode, where an entry whose transaction
// never resolved must not be migrated (its absence from the transaction
// store is indistinguishable from never-existed).
func lastCommitted(entries []chainEntry, committed isCommittedFunc) (entry chainEntry, ok bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if committed(entries[i].TxnID) {
			return entries[i], true
		}
	}
	return chainEntry{}, false
}

// lastNotAborted scans back-to-front for the first non-aborted entry. Safe
// to call only after globallyVisibleAll(entries, oldest) is true, at which
// point every entry is either committed or aborted — no unresolved entries
// remain to confuse the scan.
func lastNotAborted(entries []chainEntry, aborted isAbortedFunc) (entry chainEntry, ok bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if !aborted(entries[i].TxnID) {
			return entries[i], true
		}
	}
	return chainEntry{}, false
}

// txnMin returns the smallest txn_id across entries, and false if entries
// is empty.
func txnMin(entries []chainEntry) (min uint64, ok bool) {
	if len(entries) == 0 {
		return 0, false
	}
	min = entries[0].TxnID
	for _, e := range entries[1:] {
		if e.TxnID < min {
			min = e.TxnID
		}
	}
	return min, true
}

// updateCheck implements the snapshot-isolation write/write conflict test:
// if any entry is neither aborted nor visible to the writer, the write must
// fail so the host can abort and retry.
func updateCheck(entries []chainEntry, aborted isAbortedFunc, visible isVisibleFunc) error {
	for _, e := range entries {
		if aborted(e.TxnID) {
			continue
		}
		if !visible(e.TxnID) {
			return deadlockf("write conflict on txn %d", e.TxnID)
		}
	}
	return nil
}
