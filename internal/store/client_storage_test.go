package store

import (
	"bytes"
	"testing"
	"time"

	"github.com/dukerupert/sovaehr/internal/database"
)

func setupClientStorageTestDB(t *testing.T) *ClientStorageStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewClientStorageStore(db)
}

func TestClientStoragePutGet(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	if err := cs.Put("client-a", "sovaehr:last-signin-email", []byte("jordan@example.com"), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	item, err := cs.Get("client-a", "sovaehr:last-signin-email")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item == nil {
		t.Fatal("expected item, got nil")
	}
	if string(item.Value) != "jordan@example.com" {
		t.Errorf("value = %q, want %q", item.Value, "jordan@example.com")
	}
	if item.Sealed {
		t.Error("sealed = true, want false")
	}
	if item.UpdatedAt.IsZero() {
		t.Error("updated_at should be set")
	}
}

func TestClientStorageGetMissing(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	item, err := cs.Get("client-a", "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item != nil {
		t.Errorf("expected nil, got %+v", item)
	}
}

func TestClientStoragePutOverwrites(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	cs.Put("client-a", "k", []byte("one"), false)
	if err := cs.Put("client-a", "k", []byte{0x01, 0x02}, true); err != nil {
		t.Fatalf("put: %v", err)
	}

	item, _ := cs.Get("client-a", "k")
	if !bytes.Equal(item.Value, []byte{0x01, 0x02}) {
		t.Errorf("value = %v, want [1 2]", item.Value)
	}
	if !item.Sealed {
		t.Error("sealed = false, want true")
	}
}

func TestClientStorageIsolatedPerClient(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	cs.Put("client-a", "k", []byte("a"), false)
	cs.Put("client-b", "k", []byte("b"), false)

	a, _ := cs.Get("client-a", "k")
	b, _ := cs.Get("client-b", "k")
	if string(a.Value) != "a" || string(b.Value) != "b" {
		t.Errorf("values = %q/%q, want a/b", a.Value, b.Value)
	}

	items, err := cs.List("client-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("list len = %d, want 1", len(items))
	}
}

func TestClientStorageDelete(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	cs.Put("client-a", "k", []byte("v"), false)
	if err := cs.Delete("client-a", "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if item, _ := cs.Get("client-a", "k"); item != nil {
		t.Error("item should be gone")
	}

	// deleting again is fine
	if err := cs.Delete("client-a", "k"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestClientStorageDeleteClient(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	cs.Put("client-a", "k1", []byte("v"), false)
	cs.Put("client-a", "k2", []byte("v"), false)
	cs.Put("client-b", "k1", []byte("v"), false)

	count, err := cs.DeleteClient("client-a")
	if err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if count != 2 {
		t.Errorf("deleted = %d, want 2", count)
	}
	if item, _ := cs.Get("client-b", "k1"); item == nil {
		t.Error("other client's data should survive")
	}
}

func TestClientStorageDeleteStale(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	cs.Put("client-a", "old", []byte("v"), false)
	cs.Put("client-a", "new", []byte("v"), false)
	cs.db.Exec(`UPDATE client_storage SET updated_at = ? WHERE key = 'old'`, time.Now().Add(-48*time.Hour).Unix())

	count, err := cs.DeleteStale(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("delete stale: %v", err)
	}
	if count != 1 {
		t.Errorf("deleted = %d, want 1", count)
	}
	if item, _ := cs.Get("client-a", "new"); item == nil {
		t.Error("fresh item should survive")
	}
}

func TestClientStorageEnsureMeta(t *testing.T) {
	cs := setupClientStorageTestDB(t)

	first, err := cs.EnsureMeta("vault_salt", []byte("aaaa"))
	if err != nil {
		t.Fatalf("ensure meta: %v", err)
	}
	if string(first) != "aaaa" {
		t.Errorf("first = %q, want aaaa", first)
	}

	second, err := cs.EnsureMeta("vault_salt", []byte("bbbb"))
	if err != nil {
		t.Fatalf("ensure meta 2: %v", err)
	}
	if string(second) != "aaaa" {
		t.Errorf("second = %q, want existing value aaaa", second)
	}
}
