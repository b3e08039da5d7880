package document_test

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/zhouzirui/resume-studio/backend/internal/service/document"
)

func TestStorePutAssignsSequentialVersions(t *testing.T) {
	store := document.NewStore(5)

	if v := store.Put("v1 content", 0); v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}
	if v := store.Put("v2 content", 0); v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}

	got, err := store.Get(0)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got != "v2 content" {
		t.Fatalf("unexpected latest content: %q", got)
	}

	if versions := store.Versions(); !reflect.DeepEqual(versions, []int{1, 2}) {
		t.Fatalf("unexpected versions: %v", versions)
	}
}

func TestStoreGetEmpty(t *testing.T) {
	store := document.NewStore(5)

	if _, err := store.Get(0); !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(3); !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for explicit version, got %v", err)
	}
}

func TestStoreEvictsSmallestVersion(t *testing.T) {
	store := document.NewStore(5)
	for i := 0; i < 6; i++ {
		store.Put("content", 0)
	}

	if store.Len() != 5 {
		t.Fatalf("expected 5 versions retained, got %d", store.Len())
	}
	if versions := store.Versions(); !reflect.DeepEqual(versions, []int{2, 3, 4, 5, 6}) {
		t.Fatalf("unexpected versions after eviction: %v", versions)
	}
	if _, err := store.Get(1); !errors.Is(err, document.ErrNotFound) {
		t.Fatalf("expected version 1 to be evicted, got %v", err)
	}
}

func TestStoreExplicitVersionCreatesGaps(t *testing.T) {
	store := document.NewStore(3)
	store.Put("a", 0)
	store.Put("b", 10)

	if v := store.Put("c", 0); v != 11 {
		t.Fatalf("expected auto version 11 after explicit 10, got %d", v)
	}
	store.Put("d", 0)

	if versions := store.Versions(); !reflect.DeepEqual(versions, []int{10, 11, 12}) {
		t.Fatalf("unexpected versions: %v", versions)
	}
}

func TestStoreOverwriteExplicitVersion(t *testing.T) {
	store := document.NewStore(5)
	store.Put("first", 0)
	store.Put("rewritten", 1)

	got, err := store.Get(1)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got != "rewritten" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected a single version, got %d", store.Len())
	}
}

func TestStoreConcurrentPutsDoNotLoseVersions(t *testing.T) {
	store := document.NewStore(100)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Put("content", 0)
		}()
	}
	wg.Wait()

	versions := store.Versions()
	if len(versions) != 50 {
		t.Fatalf("expected 50 distinct versions, got %d", len(versions))
	}
	if versions[0] != 1 || versions[49] != 50 {
		t.Fatalf("expected contiguous 1..50, got %v", versions)
	}
}

func TestNewStoreDefaultCapacity(t *testing.T) {
	if got := document.NewStore(0).Capacity(); got != document.DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", document.DefaultCapacity, got)
	}
}
