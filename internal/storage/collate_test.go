package storage

import "testing"

func TestByteCollator(t *testing.T) {
	c := ByteCollator()
	if c.Compare([]byte("a"), []byte("b")) >= 0 {
		t.Error("expected a < b")
	}
	if c.Compare([]byte("b"), []byte("a")) <= 0 {
		t.Error("expected b > a")
	}
	if c.Compare([]byte("a"), []byte("a")) != 0 {
		t.Error("expected a == a")
	}
}

func TestDefaultCollatorOrdersAscii(t *testing.T) {
	if defaultCollator.Compare([]byte("apple"), []byte("banana")) >= 0 {
		t.Error("expected apple < banana")
	}
}
