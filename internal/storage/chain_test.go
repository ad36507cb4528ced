package storage

import (
	"bytes"
	"testing"
)

func TestChainAppendAndUnmarshal(t *testing.T) {
	var buf []byte
	buf = marshalChainAppend(buf, 10, false, []byte("v1"))
	buf = marshalChainAppend(buf, 20, false, []byte("v2"))
	buf = marshalChainAppend(buf, 30, true, nil)

	entries, err := unmarshalChain(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].TxnID != 10 || entries[0].Removed || !bytes.Equal(entries[0].Value, []byte("v1")) {
		t.Errorf("entry 0: %+v", entries[0])
	}
	if entries[1].TxnID != 20 || entries[1].Removed || !bytes.Equal(entries[1].Value, []byte("v2")) {
		t.Errorf("entry 1: %+v", entries[1])
	}
	if entries[2].TxnID != 30 || !entries[2].Removed {
		t.Errorf("entry 2: %+v", entries[2])
	}
}

func TestChainEmpty(t *testing.T) {
	entries, err := unmarshalChain(nil)
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Fatalf("expected no entries, got %v", entries)
	}
}

func TestChainAppendOrderPreserved(t *testing.T) {
	var buf []byte
	for i := uint64(1); i <= 5; i++ {
		buf = marshalChainAppend(buf, i, false, []byte{byte(i)})
	}
	entries, err := unmarshalChain(buf)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range entries {
		want := uint64(i + 1)
		if e.TxnID != want {
			t.Errorf("entry %d: txnID=%d want %d", i, e.TxnID, want)
		}
	}
}

func TestChainTruncatedCount(t *testing.T) {
	if _, err := unmarshalChain([]byte{1, 2, 3}); Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestChainTruncatedEntry(t *testing.T) {
	var buf []byte
	buf = marshalChainAppend(buf, 1, false, []byte("hello"))
	truncated := buf[:len(buf)-2]
	if _, err := unmarshalChain(truncated); Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestChainGrowsMonotonically(t *testing.T) {
	var buf []byte
	var lastLen int
	for i := uint64(0); i < 10; i++ {
		buf = marshalChainAppend(buf, i, false, []byte("x"))
		if len(buf) <= lastLen {
			t.Fatalf("chain did not grow at entry %d", i)
		}
		lastLen = len(buf)
	}
}
