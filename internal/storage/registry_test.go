package storage

import "testing"

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	kv := NewMemKVDevice()
	txn := NewInProcTxnService()
	meta := NewInMemoryMetaCatalog()
	d, err := NewDevice("dev1", kv, txn, meta, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.BindTransactionNamespace(nil); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestRegistryOpenCreatesObject(t *testing.T) {
	d := newTestDevice(t)
	obj, err := d.registry.Open("table:dev1/widgets", OpenCreate)
	if err != nil {
		t.Fatal(err)
	}
	if obj.Primary != "WiredTiger.widgets" || obj.Cache != "WiredTiger.widgets.cache" {
		t.Fatalf("unexpected namespaces: %+v", obj)
	}
	if !d.kv.NamespaceExists(obj.Primary) || !d.kv.NamespaceExists(obj.Cache) {
		t.Fatal("expected both namespaces to exist")
	}
}

func TestRegistryOpenWithoutCreateFailsNotFound(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.registry.Open("table:dev1/ghost", 0)
	if Code(err) != KindNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestRegistryOpenRejectsWrongDevice(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.registry.Open("table:other/widgets", OpenCreate)
	if Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestRegistryOpenBusyRejectsOpenCursors(t *testing.T) {
	d := newTestDevice(t)
	obj, err := d.registry.Open("table:dev1/widgets", OpenCreate)
	if err != nil {
		t.Fatal(err)
	}
	obj.addRef()

	_, err = d.registry.Open("table:dev1/widgets", OpenBusy)
	if Code(err) != KindBusy {
		t.Fatalf("expected busy, got %v", err)
	}
}

func TestRegistryDrop(t *testing.T) {
	d := newTestDevice(t)
	obj, err := d.registry.Open("table:dev1/widgets", OpenCreate)
	if err != nil {
		t.Fatal(err)
	}
	primary, cache := obj.Primary, obj.Cache

	if err := d.registry.Drop("table:dev1/widgets"); err != nil {
		t.Fatal(err)
	}
	if d.kv.NamespaceExists(primary) || d.kv.NamespaceExists(cache) {
		t.Fatal("expected namespaces to be gone after drop")
	}
	if len(d.registry.list()) != 0 {
		t.Fatal("expected registry to be empty after drop")
	}
}

func TestRegistryDropBusyWithOpenCursor(t *testing.T) {
	d := newTestDevice(t)
	obj, err := d.registry.Open("table:dev1/widgets", OpenCreate)
	if err != nil {
		t.Fatal(err)
	}
	obj.addRef()

	if err := d.registry.Drop("table:dev1/widgets"); Code(err) != KindBusy {
		t.Fatalf("expected busy, got %v", err)
	}
}

func TestRegistryRename(t *testing.T) {
	d := newTestDevice(t)
	if _, err := d.registry.Open("table:dev1/widgets", OpenCreate); err != nil {
		t.Fatal(err)
	}
	if err := d.registry.Rename("table:dev1/widgets", "table:dev1/gadgets"); err != nil {
		t.Fatal(err)
	}
	if d.kv.NamespaceExists("WiredTiger.widgets") {
		t.Fatal("old primary namespace should be gone")
	}
	if !d.kv.NamespaceExists("WiredTiger.gadgets") {
		t.Fatal("new primary namespace should exist")
	}
	obj, err := d.registry.Open("table:dev1/gadgets", 0)
	if err != nil {
		t.Fatal(err)
	}
	if obj.URI != "table:dev1/gadgets" || obj.Name != "gadgets" {
		t.Fatalf("object not updated: %+v", obj)
	}
}

func TestRegistryRenameRejectsCrossDevice(t *testing.T) {
	d := newTestDevice(t)
	if _, err := d.registry.Open("table:dev1/widgets", OpenCreate); err != nil {
		t.Fatal(err)
	}
	err := d.registry.Rename("table:dev1/widgets", "table:other/widgets")
	if Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestRegistryTruncate(t *testing.T) {
	d := newTestDevice(t)
	obj, err := d.registry.Open("table:dev1/widgets", OpenCreate)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.kv.Put(obj.Primary, []byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := d.registry.Truncate("table:dev1/widgets"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := d.kv.Get(obj.Primary, []byte("a")); found {
		t.Fatal("expected primary namespace to be empty after truncate")
	}
}

func TestRegistryClose(t *testing.T) {
	d := newTestDevice(t)
	obj, err := d.registry.Open("table:dev1/widgets", OpenCreate)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.registry.Close(obj); err != nil {
		t.Fatal(err)
	}
	if len(d.registry.list()) != 0 {
		t.Fatal("expected registry to be empty after close")
	}

	obj2, _ := d.registry.Open("table:dev1/widgets2", OpenCreate)
	obj2.addRef()
	if err := d.registry.Close(obj2); Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument for nonzero refcount, got %v", err)
	}
}
