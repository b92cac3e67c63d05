// Package session persists the wallet connection across runs, so a
// user who connected recently is reconnected without prompting.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TTL is how long a saved session stays valid.
const TTL = 24 * time.Hour

// ErrNotFound is returned when no session is stored.
var ErrNotFound = errors.New("session: not found")

// State is the persisted wallet connection.
type State struct {
	IsConnected bool           `json:"isConnected"`
	Address     common.Address `json:"address"`
	ChainID     uint64         `json:"chainId"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Expired reports whether the session is older than the TTL at the
// given instant.
func (s *State) Expired(now time.Time) bool {
	return now.Sub(s.Timestamp) > TTL
}

// Store persists session state.
type Store interface {
	// Save writes the session, replacing any previous one.
	Save(ctx context.Context, s *State) error

	// Load returns the stored session or ErrNotFound.
	Load(ctx context.Context) (*State, error)

	// Clear removes the stored session. Clearing an empty store is
	// not an error.
	Clear(ctx context.Context) error
}

// Manager applies the expiry policy on top of a Store.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager builds a manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Connect records a fresh session for the address on the chain.
func (m *Manager) Connect(ctx context.Context, address common.Address, chainID uint64) error {
	return m.store.Save(ctx, &State{
		IsConnected: true,
		Address:     address,
		ChainID:     chainID,
		Timestamp:   m.now(),
	})
}

// Restore returns the saved session if it is still valid. Expired or
// disconnected sessions are cleared and reported as ErrNotFound.
func (m *Manager) Restore(ctx context.Context) (*State, error) {
	s, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !s.IsConnected || s.Expired(m.now()) {
		if err := m.store.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return s, nil
}

// Disconnect removes any saved session.
func (m *Manager) Disconnect(ctx context.Context) error {
	return m.store.Clear(ctx)
}
