package main

import (
	"context"
	"testing"

	"github.com/kvsadapter/wtkvs/internal/storage"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	kv := storage.NewMemKVDevice()
	txn := storage.NewInProcTxnService()
	meta := storage.NewInMemoryMetaCatalog()
	d, err := storage.NewDevice("default", kv, txn, meta, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.BindDevices(d); err != nil {
		t.Fatal(err)
	}
	s := newServer()
	s.addDevice("default", d)
	return s
}

func TestAdminCreateAndDrop(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.Admin(ctx, &adminRequest{Op: "create", URI: "table:default/widgets", ValueFormat: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("create failed: %+v", resp)
	}

	resp, err = s.Admin(ctx, &adminRequest{Op: "checkpoint"})
	if err != nil || !resp.Success {
		t.Fatalf("checkpoint failed: %v %+v", err, resp)
	}

	resp, err = s.Admin(ctx, &adminRequest{Op: "drop", URI: "table:default/widgets"})
	if err != nil || !resp.Success {
		t.Fatalf("drop failed: %v %+v", err, resp)
	}
}

func TestAdminUnknownDevice(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.Admin(context.Background(), &adminRequest{Device: "nope", Op: "checkpoint"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Fatal("expected failure for unknown device")
	}
}

func TestAdminVerifyNotSupported(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.Admin(context.Background(), &adminRequest{Op: "verify", URI: "table:default/widgets"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.ErrorKind != "not-supported" {
		t.Fatalf("expected not-supported, got %+v", resp)
	}
}
