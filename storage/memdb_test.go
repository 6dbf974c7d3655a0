package storage

import (
	"errors"
	"sort"
	"testing"
)

func TestMemDBGetMissingReturnsErrNotFound(t *testing.T) {
	db := NewMemDB()
	_, err := db.Get([]byte("missing"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemDBSetGet(t *testing.T) {
	db := NewMemDB()
	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestMemDBDelete(t *testing.T) {
	db := NewMemDB()
	db.Set([]byte("k"), []byte("v"))
	db.Delete([]byte("k"))
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemDBIteratorFiltersByPrefix(t *testing.T) {
	db := NewMemDB()
	db.Set([]byte("a:1"), []byte("x"))
	db.Set([]byte("a:2"), []byte("y"))
	db.Set([]byte("b:1"), []byte("z"))

	it := db.NewIterator([]byte("a:"))
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a:1" || keys[1] != "a:2" {
		t.Fatalf("keys = %v, want [a:1 a:2]", keys)
	}
}

func TestMemDBBatchAppliesAtomically(t *testing.T) {
	db := NewMemDB()
	db.Set([]byte("keep"), []byte("1"))
	db.Set([]byte("remove"), []byte("1"))

	b := db.NewBatch()
	b.Set([]byte("added"), []byte("2"))
	b.Delete([]byte("remove"))
	if err := b.Write(); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Get([]byte("remove")); !errors.Is(err, ErrNotFound) {
		t.Fatal("batch delete did not apply")
	}
	if v, _ := db.Get([]byte("added")); string(v) != "2" {
		t.Fatal("batch set did not apply")
	}
	if v, _ := db.Get([]byte("keep")); string(v) != "1" {
		t.Fatal("unrelated key was disturbed")
	}
}

func TestMemDBBatchResetDiscardsOps(t *testing.T) {
	db := NewMemDB()
	b := db.NewBatch()
	b.Set([]byte("k"), []byte("v"))
	b.Reset()
	if err := b.Write(); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatal("reset batch should not have written anything")
	}
}
