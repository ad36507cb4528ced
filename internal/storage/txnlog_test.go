package storage

import "testing"

func newTestTxnLog(t *testing.T) (*TxnLog, KVDevice) {
	t.Helper()
	kv := NewMemKVDevice()
	if err := kv.CreateNamespace(txnNamespaceName); err != nil {
		t.Fatal(err)
	}
	return newTxnLog(kv, txnNamespaceName), kv
}

func TestTxnLogSetAndStateCommitted(t *testing.T) {
	log, _ := newTestTxnLog(t)
	if err := log.Set(7, true); err != nil {
		t.Fatal(err)
	}
	committed, aborted, resolved, err := log.State(7)
	if err != nil {
		t.Fatal(err)
	}
	if !committed || aborted || !resolved {
		t.Fatalf("got committed=%v aborted=%v resolved=%v", committed, aborted, resolved)
	}
}

func TestTxnLogSetAndStateAborted(t *testing.T) {
	log, _ := newTestTxnLog(t)
	if err := log.Set(9, false); err != nil {
		t.Fatal(err)
	}
	committed, aborted, resolved, err := log.State(9)
	if err != nil {
		t.Fatal(err)
	}
	if committed || !aborted || !resolved {
		t.Fatalf("got committed=%v aborted=%v resolved=%v", committed, aborted, resolved)
	}
}

func TestTxnLogStateUnresolved(t *testing.T) {
	log, _ := newTestTxnLog(t)
	committed, aborted, resolved, err := log.State(42)
	if err != nil {
		t.Fatal(err)
	}
	if committed || aborted || resolved {
		t.Fatalf("expected unresolved, got committed=%v aborted=%v resolved=%v", committed, aborted, resolved)
	}
}

func TestTxnLogClean(t *testing.T) {
	log, kv := newTestTxnLog(t)
	for _, id := range []uint64{1, 2, 3, 10} {
		if err := log.Set(id, true); err != nil {
			t.Fatal(err)
		}
	}

	if err := log.Clean(5); err != nil {
		t.Fatal(err)
	}

	for _, id := range []uint64{1, 2, 3} {
		if _, found, _ := kv.Get(txnNamespaceName, encodeTxnID(id)); found {
			t.Fatalf("expected txn %d to be cleaned", id)
		}
	}
	if _, found, _ := kv.Get(txnNamespaceName, encodeTxnID(10)); !found {
		t.Fatal("expected txn 10 to survive clean")
	}
}

func TestTxnIDRoundTrip(t *testing.T) {
	b := encodeTxnID(123456789)
	id, err := decodeTxnID(b)
	if err != nil {
		t.Fatal(err)
	}
	if id != 123456789 {
		t.Fatalf("expected 123456789, got %d", id)
	}
}
