package storage

import (
	"context"
	"testing"

	"github.com/ujpm/GGH-website-sub000/internal/config"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
)

func TestOpenMemory(t *testing.T) {
	stores, err := Open(context.Background(), config.Config{StoreDriver: config.DriverMemory}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer stores.Close(context.Background())

	n, err := stores.Calls.Count(context.Background(), funding.Filter{})
	if err != nil || n != 0 {
		t.Fatalf("expected empty store, got %d, %v", n, err)
	}
	if stores.Users == nil {
		t.Fatal("expected a user store")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.Config{StoreDriver: "sqlite"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
