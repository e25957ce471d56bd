// Package memory provides in-memory implementations of storage.CredentialStore
// and storage.MembershipStore for testing and lightweight deployments. Records
// are seeded from configuration and lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
)

// Store is an in-memory client registry and membership store.
type Store struct {
	mu          sync.RWMutex
	clients     map[string]storage.ClientRecord
	memberships map[string]storage.Membership
	now         func() time.Time
}

// Ensure Store implements both storage interfaces at compile time.
var (
	_ storage.CredentialStore = (*Store)(nil)
	_ storage.MembershipStore = (*Store)(nil)
	_ storage.ClientWriter    = (*Store)(nil)
)

// New creates a store holding the given clients. Later duplicates of a
// client id replace earlier ones.
func New(clients ...storage.ClientRecord) *Store {
	s := &Store{
		clients:     make(map[string]storage.ClientRecord, len(clients)),
		memberships: make(map[string]storage.Membership),
		now:         time.Now,
	}
	for _, c := range clients {
		s.clients[c.ClientID] = c
	}
	return s
}

// PutClient adds or replaces a client record.
func (s *Store) PutClient(_ context.Context, c storage.ClientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ClientID] = c
	return nil
}

// LookupClient returns a copy of the record for clientID.
func (s *Store) LookupClient(_ context.Context, clientID string) (*storage.ClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// Save inserts a membership under the tenant in the context, or under
// m.TenantID when the context carries none.
func (s *Store) Save(ctx context.Context, m storage.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.memberships[m.ID]; exists {
		return storage.ErrConflict
	}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		m.TenantID = tenantID
	}
	now := s.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.LastModifiedAt = now
	s.memberships[m.ID] = m
	return nil
}

func (s *Store) FindByGroup(ctx context.Context, groupID string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{GroupID: groupID}), nil
}

func (s *Store) FindByUserProfile(ctx context.Context, userProfileID string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{UserProfileID: userProfileID}), nil
}

func (s *Store) FindByGroupAndUser(ctx context.Context, groupID, userProfileID string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{GroupID: groupID, UserProfileID: userProfileID}), nil
}

func (s *Store) FindByGroupUserAndType(ctx context.Context, groupID, userProfileID, membershipType string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{
		GroupID:        groupID,
		UserProfileID:  userProfileID,
		MembershipType: membershipType,
	}), nil
}

func (s *Store) FindByGroupAndType(ctx context.Context, groupID, membershipType string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{GroupID: groupID, MembershipType: membershipType}), nil
}

// find returns matching memberships ordered by creation time, then ID.
func (s *Store) find(ctx context.Context, f storage.MembershipFilter) []storage.Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID := storage.GetTenant(ctx)
	out := []storage.Membership{}
	for _, m := range s.memberships {
		if tenantID != "" && m.TenantID != tenantID {
			continue
		}
		if f.Matches(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
