package db

import (
	"testing"
	"time"
)

func TestOptionsWithDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	if got.MaxConns != 16 || got.MinConns != 2 {
		t.Fatalf("zero options = %+v, want defaults", got)
	}
	if got.MaxConnLifetime != 30*time.Minute || got.MaxConnIdleTime != 10*time.Minute {
		t.Fatalf("zero options lifetimes = %+v, want defaults", got)
	}

	got = Options{MaxConns: 4, MinConns: 9}.withDefaults()
	if got.MinConns != 4 {
		t.Fatalf("MinConns = %d, want clamped to MaxConns 4", got.MinConns)
	}

	explicit := Options{MaxConns: 50, MinConns: 5, MaxConnLifetime: time.Hour, MaxConnIdleTime: time.Minute}
	if got := explicit.withDefaults(); got != explicit {
		t.Fatalf("explicit options changed: %+v", got)
	}
}
