package tokencache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hllvc/ztoken/internal/token"
)

func newTestCache(t *testing.T, now time.Time) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "subdir", "tokens.yaml"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	c.now = func() time.Time { return now }
	return c
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCache(t, now)

	in := &token.Record{
		AccessToken:  "abc-123",
		ExpiresIn:    3600,
		CreationTime: 42, // overwritten on save
		Extra:        map[string]any{"token_type": "Bearer"},
	}
	if err := c.Save("mytok", in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got := c.Get("mytok")
	if got == nil {
		t.Fatal("Get() returned nil after Save()")
	}
	if got.AccessToken != "abc-123" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "abc-123")
	}
	if got.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", got.ExpiresIn)
	}
	if got.CreationTime != now.Unix() {
		t.Errorf("CreationTime = %d, want save time %d", got.CreationTime, now.Unix())
	}
	if got.Extra["token_type"] != "Bearer" {
		t.Errorf("Extra[token_type] = %v, want Bearer", got.Extra["token_type"])
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	c := newTestCache(t, time.Unix(1_700_000_000, 0))

	if err := c.Save("tok", &token.Record{AccessToken: "first", ExpiresIn: 60}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := c.Save("tok", &token.Record{AccessToken: "second", ExpiresIn: 60}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if got := c.Get("tok"); got.AccessToken != "second" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "second")
	}
}

func TestSavePreservesOtherEntries(t *testing.T) {
	c := newTestCache(t, time.Unix(1_700_000_000, 0))

	if err := c.Save("one", &token.Record{AccessToken: "a", ExpiresIn: 60}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := c.Save("two", &token.Record{AccessToken: "b", ExpiresIn: 60}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if got := c.Get("one"); got == nil || got.AccessToken != "a" {
		t.Errorf("entry %q lost after saving another entry", "one")
	}
	if got := len(c.Names()); got != 2 {
		t.Errorf("Names() length = %d, want 2", got)
	}
}

func TestGetMissingName(t *testing.T) {
	c := newTestCache(t, time.Unix(1_700_000_000, 0))
	if got := c.Get("nope"); got != nil {
		t.Errorf("Get() = %v, want nil for missing name", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := newTestCache(t, time.Unix(1_700_000_000, 0))
	if got := c.Load(); len(got) != 0 {
		t.Errorf("Load() = %v, want empty cache for missing file", got)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.yaml")
	if err := os.WriteFile(path, []byte("{{{not yaml"), 0600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	c, err := New(path)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if got := c.Load(); len(got) != 0 {
		t.Errorf("Load() = %v, want empty cache for corrupt file", got)
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t, time.Unix(1_700_000_000, 0))

	if err := c.Save("tok", &token.Record{AccessToken: "a", ExpiresIn: 60}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := c.Delete("tok"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if got := c.Get("tok"); got != nil {
		t.Errorf("Get() = %v after Delete(), want nil", got)
	}

	// Deleting an absent name must not fail.
	if err := c.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) error: %v", err)
	}
}
