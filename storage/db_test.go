package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)

	if err := db.Set("a", []byte("one")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	got, err := db.Get("a")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("Expected one, got %s", got)
	}

	if err := db.Delete("a"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := db.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := db.Delete("a"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	db := openTestDB(t)
	type rec struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	if err := db.SetJSON("r", rec{Name: "clip", Size: 42}); err != nil {
		t.Fatalf("Failed to set json: %v", err)
	}
	var out rec
	if err := db.GetJSON("r", &out); err != nil {
		t.Fatalf("Failed to get json: %v", err)
	}
	if out.Name != "clip" || out.Size != 42 {
		t.Errorf("Unexpected record %+v", out)
	}
}

func TestIteratePrefix(t *testing.T) {
	db := openTestDB(t)
	for _, k := range []string{"job/1", "job/2", "jobx", "meta/1"} {
		if err := db.Set(k, []byte(k)); err != nil {
			t.Fatalf("Failed to set %s: %v", k, err)
		}
	}

	var keys []string
	err := db.Iterate("job/", func(key string, value []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}
	if strings.Join(keys, ",") != "job/1,job/2" {
		t.Errorf("Expected job/1,job/2, got %v", keys)
	}

	var all int
	db.Iterate("", func(string, []byte) error { all++; return nil })
	if all != 4 {
		t.Errorf("Expected 4 keys without prefix, got %d", all)
	}
}

func TestDeleteMatching(t *testing.T) {
	db := openTestDB(t)
	db.Set("p/keep", []byte("keep"))
	db.Set("p/drop1", []byte("drop"))
	db.Set("p/drop2", []byte("drop"))

	n, err := db.DeleteMatching("p/", func(_ string, v []byte) bool { return string(v) == "drop" })
	if err != nil {
		t.Fatalf("DeleteMatching failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 deletions, got %d", n)
	}
	if _, err := db.Get("p/keep"); err != nil {
		t.Errorf("Kept key disappeared: %v", err)
	}
}

func TestUpperBound(t *testing.T) {
	if got := upperBound([]byte("ab")); string(got) != "ac" {
		t.Errorf("Expected ac, got %q", got)
	}
	if got := upperBound([]byte{'a', 0xff}); string(got) != "b" {
		t.Errorf("Expected b, got %q", got)
	}
	if got := upperBound([]byte{0xff}); got != nil {
		t.Errorf("Expected nil, got %q", got)
	}
}

func TestCheckHealth(t *testing.T) {
	db := openTestDB(t)
	if err := db.CheckHealth(); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}
