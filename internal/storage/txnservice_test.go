package storage

import "testing"

func TestTxnServiceBeginCommitVisible(t *testing.T) {
	s := NewInProcTxnService()
	w := s.Begin()
	r1 := s.Begin() // started before w commits
	if err := s.Commit(w); err != nil {
		t.Fatal(err)
	}
	r2 := s.Begin() // started after w committed

	if s.Visible(w, r1) {
		t.Error("r1 should not see w (started before commit)")
	}
	if !s.Visible(w, r2) {
		t.Error("r2 should see w (started after commit)")
	}
	if !s.Visible(w, w) {
		t.Error("writer should see its own write")
	}
}

func TestTxnServiceAbort(t *testing.T) {
	s := NewInProcTxnService()
	txn := s.Begin()
	if err := s.Abort(txn); err != nil {
		t.Fatal(err)
	}
	if !s.IsAborted(txn) {
		t.Error("expected txn aborted")
	}
	if s.IsCommitted(txn) {
		t.Error("aborted txn should not be committed")
	}
}

func TestTxnServiceOldestActive(t *testing.T) {
	s := NewInProcTxnService()
	t1 := s.Begin()
	t2 := s.Begin()
	_ = t2

	if got := s.OldestActiveID(); got != t1 {
		t.Fatalf("oldest active: got %d want %d", got, t1)
	}
	s.Commit(t1)
	if got := s.OldestActiveID(); got != t2 {
		t.Fatalf("oldest active after commit: got %d want %d", got, t2)
	}
}

func TestTxnServiceResolveUnknown(t *testing.T) {
	s := NewInProcTxnService()
	if err := s.Commit(9999); Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestTxnServiceNotifyOnCommit(t *testing.T) {
	s := NewInProcTxnService()
	txn := s.Begin()

	var gotCommitted bool
	var called bool
	s.RegisterNotify(txn, func(id uint64, committed bool) {
		called = true
		gotCommitted = committed
	})

	if err := s.Commit(txn); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("expected notify callback to fire")
	}
	if !gotCommitted {
		t.Error("expected committed=true")
	}
}

func TestTxnServiceNotifyAfterResolveFiresImmediately(t *testing.T) {
	s := NewInProcTxnService()
	txn := s.Begin()
	s.Abort(txn)

	var called bool
	s.RegisterNotify(txn, func(id uint64, committed bool) {
		called = true
		if committed {
			t.Error("expected committed=false")
		}
	})
	if !called {
		t.Fatal("expected immediate callback for already-resolved txn")
	}
}
