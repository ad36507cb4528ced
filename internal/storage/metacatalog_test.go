package storage

import (
	"path/filepath"
	"testing"
)

func TestMetaCatalogInMemory(t *testing.T) {
	cat := NewInMemoryMetaCatalog()
	uri := "kvs:dev1/orders"
	meta := "version=(major=1,minor=0),key_format=r,value_format=u"

	if err := cat.Put(uri, meta); err != nil {
		t.Fatal(err)
	}
	got, found, err := cat.Get(uri)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got != meta {
		t.Fatalf("got %q found=%v", got, found)
	}

	if err := cat.Delete(uri); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := cat.Get(uri); found {
		t.Error("expected entry to be gone after delete")
	}
}

func TestMetaCatalogYAMLPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.yaml")
	uri := "kvs:dev1/orders"
	meta := "version=(major=1,minor=0),key_format=u,value_format=u"

	cat1, err := LoadYAMLMetaCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cat1.Put(uri, meta); err != nil {
		t.Fatal(err)
	}

	cat2, err := LoadYAMLMetaCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	got, found, err := cat2.Get(uri)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got != meta {
		t.Fatalf("after reload: got %q found=%v", got, found)
	}
}

func TestMetaCatalogYAMLMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.yaml")
	cat, err := LoadYAMLMetaCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, found, _ := cat.Get("anything"); found {
		t.Error("expected empty catalog for missing file")
	}
}
