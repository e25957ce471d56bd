// Package postgres provides PostgreSQL implementations of storage.CredentialStore
// and storage.MembershipStore. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
)

// Store is a PostgreSQL-backed client registry and membership store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements both storage interfaces at compile time.
var (
	_ storage.CredentialStore = (*Store)(nil)
	_ storage.MembershipStore = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// LookupClient returns the registered client with the given id.
func (s *Store) LookupClient(ctx context.Context, clientID string) (*storage.ClientRecord, error) {
	var (
		rec          storage.ClientRecord
		fedID, fedSS *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT client_id, client_secret, tenant_id,
		       client_id_issued_at, client_secret_expires_at,
		       iam_client_id, iam_client_secret,
		       federated_client_id, federated_client_secret, tier
		FROM client_credentials
		WHERE client_id = $1
	`, clientID).Scan(
		&rec.ClientID, &rec.ClientSecret, &rec.TenantID,
		&rec.ClientIDIssuedAt, &rec.ClientSecretExpiresAt,
		&rec.IAMClientID, &rec.IAMClientSecret,
		&fedID, &fedSS, &rec.Tier,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying client: %w", err)
	}
	if fedID != nil {
		rec.FederatedClientID = *fedID
	}
	if fedSS != nil {
		rec.FederatedClientSecret = *fedSS
	}
	return &rec, nil
}

// PutClient inserts or replaces a client record.
func (s *Store) PutClient(ctx context.Context, rec storage.ClientRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO client_credentials (
			client_id, client_secret, tenant_id,
			client_id_issued_at, client_secret_expires_at,
			iam_client_id, iam_client_secret,
			federated_client_id, federated_client_secret, tier
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (client_id) DO UPDATE SET
			client_secret = EXCLUDED.client_secret,
			tenant_id = EXCLUDED.tenant_id,
			client_id_issued_at = EXCLUDED.client_id_issued_at,
			client_secret_expires_at = EXCLUDED.client_secret_expires_at,
			iam_client_id = EXCLUDED.iam_client_id,
			iam_client_secret = EXCLUDED.iam_client_secret,
			federated_client_id = EXCLUDED.federated_client_id,
			federated_client_secret = EXCLUDED.federated_client_secret,
			tier = EXCLUDED.tier
	`,
		rec.ClientID, rec.ClientSecret, rec.TenantID,
		rec.ClientIDIssuedAt, rec.ClientSecretExpiresAt,
		rec.IAMClientID, rec.IAMClientSecret,
		nullString(rec.FederatedClientID), nullString(rec.FederatedClientSecret), rec.Tier,
	)
	if err != nil {
		return fmt.Errorf("upserting client: %w", err)
	}
	return nil
}

// Save inserts a membership under the tenant in the context, or under
// m.TenantID when the context carries none.
func (s *Store) Save(ctx context.Context, m storage.Membership) error {
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		m.TenantID = tenantID
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO group_memberships (
			id, tenant_id, group_id, user_profile_id, membership_type,
			created_at, last_modified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.TenantID, m.GroupID, m.UserProfileID, m.MembershipType, m.CreatedAt, now)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting membership: %w", err)
	}
	return nil
}

func (s *Store) FindByGroup(ctx context.Context, groupID string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{GroupID: groupID})
}

func (s *Store) FindByUserProfile(ctx context.Context, userProfileID string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{UserProfileID: userProfileID})
}

func (s *Store) FindByGroupAndUser(ctx context.Context, groupID, userProfileID string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{GroupID: groupID, UserProfileID: userProfileID})
}

func (s *Store) FindByGroupUserAndType(ctx context.Context, groupID, userProfileID, membershipType string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{
		GroupID:        groupID,
		UserProfileID:  userProfileID,
		MembershipType: membershipType,
	})
}

func (s *Store) FindByGroupAndType(ctx context.Context, groupID, membershipType string) ([]storage.Membership, error) {
	return s.find(ctx, storage.MembershipFilter{GroupID: groupID, MembershipType: membershipType})
}

// find builds the WHERE clause from the non-empty filter fields and the
// context tenant.
func (s *Store) find(ctx context.Context, f storage.MembershipFilter) ([]storage.Membership, error) {
	query := `
		SELECT id, tenant_id, group_id, user_profile_id, membership_type,
		       created_at, last_modified_at
		FROM group_memberships
		WHERE true
	`
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add("tenant_id", storage.GetTenant(ctx))
	add("group_id", f.GroupID)
	add("user_profile_id", f.UserProfileID)
	add("membership_type", f.MembershipType)
	query += " ORDER BY created_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	out := []storage.Membership{}
	for rows.Next() {
		var m storage.Membership
		if err := rows.Scan(&m.ID, &m.TenantID, &m.GroupID, &m.UserProfileID,
			&m.MembershipType, &m.CreatedAt, &m.LastModifiedAt); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memberships: %w", err)
	}
	return out, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
