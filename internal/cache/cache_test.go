package cache

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "tenant-1", "key", []byte("value"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}

		got, err := c.Get(ctx, "tenant-1", "key")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, []byte("value")) {
			t.Errorf("expected value, got %q", got)
		}
	})

	t.Run("MissReturnsNilNil", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		got, err := c.Get(ctx, "tenant-1", "missing")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil on miss, got %q", got)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "tenant-1", "key", []byte("value"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}

		got, err := c.Get(ctx, "tenant-2", "key")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != nil {
			t.Errorf("expected no cross-tenant read, got %q", got)
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "tenant-1", "key", []byte("value"), 10*time.Millisecond); err != nil {
			t.Fatalf("Set: %v", err)
		}

		time.Sleep(30 * time.Millisecond)

		got, err := c.Get(ctx, "tenant-1", "key")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != nil {
			t.Errorf("expected expired entry to miss, got %q", got)
		}
	})

	t.Run("EvictsOldest", func(t *testing.T) {
		c := NewLRUCache(3)
		defer c.Close()

		for i := 0; i < 4; i++ {
			key := fmt.Sprintf("key-%d", i)
			if err := c.Set(ctx, "tenant-1", key, []byte{byte(i)}, time.Minute); err != nil {
				t.Fatalf("Set: %v", err)
			}
		}

		if got, _ := c.Get(ctx, "tenant-1", "key-0"); got != nil {
			t.Error("expected the oldest entry to be evicted")
		}
		if got, _ := c.Get(ctx, "tenant-1", "key-3"); got == nil {
			t.Error("expected the newest entry to survive")
		}
		if size, capacity := c.Stats(); size != 3 || capacity != 3 {
			t.Errorf("expected 3/3, got %d/%d", size, capacity)
		}
	})

	t.Run("GetRefreshesRecency", func(t *testing.T) {
		c := NewLRUCache(2)
		defer c.Close()

		c.Set(ctx, "tenant-1", "a", []byte("a"), time.Minute)
		c.Set(ctx, "tenant-1", "b", []byte("b"), time.Minute)
		c.Get(ctx, "tenant-1", "a")
		c.Set(ctx, "tenant-1", "c", []byte("c"), time.Minute)

		if got, _ := c.Get(ctx, "tenant-1", "a"); got == nil {
			t.Error("expected the recently read entry to survive")
		}
		if got, _ := c.Get(ctx, "tenant-1", "b"); got != nil {
			t.Error("expected the least recently used entry to be evicted")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		c.Set(ctx, "tenant-1", "key", []byte("value"), time.Minute)
		if err := c.Delete(ctx, "tenant-1", "key"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if got, _ := c.Get(ctx, "tenant-1", "key"); got != nil {
			t.Error("expected entry to be gone after delete")
		}

		// Deleting a missing key is not an error
		if err := c.Delete(ctx, "tenant-1", "missing"); err != nil {
			t.Errorf("Delete of missing key: %v", err)
		}
	})

	t.Run("RequiresTenant", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if _, err := c.Get(ctx, "", "key"); err == nil {
			t.Error("expected an error for empty tenant on Get")
		}
		if err := c.Set(ctx, "", "key", nil, time.Minute); err == nil {
			t.Error("expected an error for empty tenant on Set")
		}
	})
}

func TestCustomerNames(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(10)
	defer c.Close()

	if err := c.SetCustomerName(ctx, "tenant-1", "CUST-1", "Grace Wanjiru", time.Minute); err != nil {
		t.Fatalf("SetCustomerName: %v", err)
	}

	name, ok, err := c.GetCustomerName(ctx, "tenant-1", "CUST-1")
	if err != nil {
		t.Fatalf("GetCustomerName: %v", err)
	}
	if !ok || name != "Grace Wanjiru" {
		t.Errorf("expected hit with Grace Wanjiru, got %q, %v", name, ok)
	}

	if _, ok, _ := c.GetCustomerName(ctx, "tenant-1", "missing"); ok {
		t.Error("expected miss for unknown customer")
	}
	if _, ok, _ := c.GetCustomerName(ctx, "tenant-2", "CUST-1"); ok {
		t.Error("expected miss across tenants")
	}
}

func TestNewFactory(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Errorf("expected an LRU cache, got %T", c)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected an error for an unsupported cache type")
		}
	})
}
