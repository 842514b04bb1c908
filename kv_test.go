package chathistory

import (
	"context"
	"testing"
)

func TestMemoryKVQuota(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects writes over capacity", func(t *testing.T) {
		kv := NewBoundedMemoryKV(10)

		if err := kv.Set(ctx, "ab", "cdefgh"); err != nil { // 8 bytes
			t.Fatalf("expected write within capacity, got: %v", err)
		}
		if err := kv.Set(ctx, "xy", "zzz"); err != ErrQuotaExceeded { // would be 13
			t.Fatalf("expected ErrQuotaExceeded, got: %v", err)
		}

		// The failed write must not leave partial state.
		if _, ok, _ := kv.Get(ctx, "xy"); ok {
			t.Error("expected rejected key to be absent")
		}
	})

	t.Run("overwriting a key does not double count it", func(t *testing.T) {
		kv := NewBoundedMemoryKV(10)

		_ = kv.Set(ctx, "ab", "cdefgh")
		if err := kv.Set(ctx, "ab", "cdefgh"); err != nil {
			t.Errorf("expected overwrite to fit, got: %v", err)
		}
	})
}
