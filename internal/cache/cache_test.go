package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNilClientIsMiss(t *testing.T) {
	var c *Client
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if got := c.Get(ctx, "k"); got != nil {
		t.Errorf("Get = %q, want nil", got)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping = %v, want nil", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
}

func TestNewEmptyAddrReturnsNil(t *testing.T) {
	if c := New("", "", 0); c != nil {
		t.Error("expected nil client for empty address")
	}
}

func TestUnreachableServerIsMiss(t *testing.T) {
	rc := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewFromRedis(rc)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if got := c.Get(ctx, "k"); got != nil {
		t.Errorf("Get = %q, want nil", got)
	}
}
