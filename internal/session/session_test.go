package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var testAddr = common.HexToAddress("0x0000000000000000000000000000000000000a11")

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "session.json")),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load() on empty store = %v, want ErrNotFound", err)
			}

			saved := &State{
				IsConnected: true,
				Address:     testAddr,
				ChainID:     31337,
				Timestamp:   time.Now().UTC().Truncate(time.Second),
			}
			if err := s.Save(ctx, saved); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Address != saved.Address || got.ChainID != saved.ChainID || !got.IsConnected {
				t.Errorf("loaded = %+v, want %+v", got, saved)
			}
			if !got.Timestamp.Equal(saved.Timestamp) {
				t.Errorf("timestamp = %v, want %v", got.Timestamp, saved.Timestamp)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			if _, err := s.Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load() after Clear() = %v, want ErrNotFound", err)
			}
			// Clearing twice is fine.
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("second Clear() error = %v", err)
			}
		})
	}
}

func TestFileStore_CorruptFileTreatedAsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path).Load(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() = %v, want ErrNotFound", err)
	}
}

func TestFileStore_JSONShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileStore(path)

	err := s.Save(context.Background(), &State{
		IsConnected: true,
		Address:     testAddr,
		ChainID:     31337,
		Timestamp:   time.Unix(1_700_000_000, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("session file is not JSON: %v", err)
	}
	for _, key := range []string{"isConnected", "address", "chainId", "timestamp"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("session file missing key %q", key)
		}
	}
}

func TestManager_RestoreValidSession(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	if err := m.Connect(ctx, testAddr, 31337); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	got, err := m.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got.Address != testAddr || got.ChainID != 31337 {
		t.Errorf("restored = %+v", got)
	}
}

func TestManager_ExpiredSessionIsCleared(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	if err := m.Connect(ctx, testAddr, 31337); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Jump past the TTL.
	m.now = func() time.Time { return time.Now().Add(TTL + time.Minute) }

	if _, err := m.Restore(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Restore() = %v, want ErrNotFound for expired session", err)
	}
	// The expired session was removed from the store, too.
	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session still present: %v", err)
	}
}

func TestManager_SessionJustInsideTTL(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	if err := m.Connect(ctx, testAddr, 31337); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(TTL - time.Minute) }

	if _, err := m.Restore(ctx); err != nil {
		t.Fatalf("Restore() just inside TTL error = %v", err)
	}
}

func TestManager_Disconnect(t *testing.T) {
	m := NewManager(NewMemoryStore())
	ctx := context.Background()

	if err := m.Connect(ctx, testAddr, 31337); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := m.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if _, err := m.Restore(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Restore() after Disconnect() = %v, want ErrNotFound", err)
	}
}
