package keystore

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digital-defiance/eecp/crypto/tkd"
)

// PostgresConfig holds the connection settings for a postgres-backed
// KeyStore.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// postgresKeyStore implements KeyStore against a postgres schema of two
// tables: temporal_keys and participant_keys.
type postgresKeyStore struct {
	pool *pgxpool.Pool
}

// NewPostgresKeyStore opens a connection pool and verifies connectivity.
func NewPostgresKeyStore(ctx context.Context, cfg *PostgresConfig) (KeyStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &postgresKeyStore{pool: pool}, nil
}

func (s *postgresKeyStore) StoreKey(ctx context.Context, workspaceID string, key *tkd.TemporalKey) error {
	query := `
		INSERT INTO temporal_keys (workspace_id, key_id, material, valid_from, valid_until, grace_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id, key_id) DO UPDATE
			SET material = EXCLUDED.material,
			    valid_from = EXCLUDED.valid_from,
			    valid_until = EXCLUDED.valid_until,
			    grace_period_end = EXCLUDED.grace_period_end
	`
	_, err := s.pool.Exec(ctx, query, workspaceID, key.ID, key.Material[:], key.ValidFrom, key.ValidUntil, key.GracePeriodEnd)
	if err != nil {
		return fmt.Errorf("store temporal key: %w", err)
	}
	return nil
}

func (s *postgresKeyStore) GetKeyByID(ctx context.Context, workspaceID, keyID string) (*tkd.TemporalKey, error) {
	query := `
		SELECT material, valid_from, valid_until, grace_period_end
		FROM temporal_keys
		WHERE workspace_id = $1 AND key_id = $2
	`
	var (
		material       []byte
		validFrom      time.Time
		validUntil     time.Time
		gracePeriodEnd time.Time
	)
	err := s.pool.QueryRow(ctx, query, workspaceID, keyID).Scan(&material, &validFrom, &validUntil, &gracePeriodEnd)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get temporal key: %w", err)
	}
	return toTemporalKey(keyID, material, validFrom, validUntil, gracePeriodEnd), nil
}

func (s *postgresKeyStore) GetCurrentKey(ctx context.Context, workspaceID string) (*tkd.TemporalKey, error) {
	query := `
		SELECT key_id, material, valid_from, valid_until, grace_period_end
		FROM temporal_keys
		WHERE workspace_id = $1
		ORDER BY valid_from DESC
		LIMIT 1
	`
	var (
		keyID          string
		material       []byte
		validFrom      time.Time
		validUntil     time.Time
		gracePeriodEnd time.Time
	)
	err := s.pool.QueryRow(ctx, query, workspaceID).Scan(&keyID, &material, &validFrom, &validUntil, &gracePeriodEnd)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current key: %w", err)
	}
	return toTemporalKey(keyID, material, validFrom, validUntil, gracePeriodEnd), nil
}

func toTemporalKey(keyID string, material []byte, validFrom, validUntil, gracePeriodEnd time.Time) *tkd.TemporalKey {
	k := &tkd.TemporalKey{ID: keyID, ValidFrom: validFrom, ValidUntil: validUntil, GracePeriodEnd: gracePeriodEnd}
	copy(k.Material[:], material)
	return k
}

// DeleteWorkspaceKeys overwrites every row's material with random bytes
// before deleting the rows, the closest a SQL UPDATE+DELETE pair can come
// to a secure scrub at the storage-engine level.
func (s *postgresKeyStore) DeleteWorkspaceKeys(ctx context.Context, workspaceID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT key_id FROM temporal_keys WHERE workspace_id = $1`, workspaceID)
	if err != nil {
		return fmt.Errorf("list workspace keys: %w", err)
	}
	var keyIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan key id: %w", err)
		}
		keyIDs = append(keyIDs, id)
	}
	rows.Close()

	for _, id := range keyIDs {
		junk := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, junk); err != nil {
			return fmt.Errorf("generate scrub bytes: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE temporal_keys SET material = $1 WHERE workspace_id = $2 AND key_id = $3`, junk, workspaceID, id); err != nil {
			return fmt.Errorf("scrub key material: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM temporal_keys WHERE workspace_id = $1`, workspaceID); err != nil {
		return fmt.Errorf("delete workspace keys: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *postgresKeyStore) ListKeys(ctx context.Context, workspaceID string) ([]*tkd.TemporalKey, error) {
	query := `
		SELECT key_id, material, valid_from, valid_until, grace_period_end
		FROM temporal_keys
		WHERE workspace_id = $1
	`
	rows, err := s.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list temporal keys: %w", err)
	}
	defer rows.Close()

	var out []*tkd.TemporalKey
	for rows.Next() {
		var (
			keyID          string
			material       []byte
			validFrom      time.Time
			validUntil     time.Time
			gracePeriodEnd time.Time
		)
		if err := rows.Scan(&keyID, &material, &validFrom, &validUntil, &gracePeriodEnd); err != nil {
			return nil, fmt.Errorf("scan temporal key: %w", err)
		}
		out = append(out, toTemporalKey(keyID, material, validFrom, validUntil, gracePeriodEnd))
	}
	return out, rows.Err()
}

// DeleteKey overwrites a single key's material with random bytes before
// deleting its row, mirroring DeleteWorkspaceKeys's scrub-then-delete order.
func (s *postgresKeyStore) DeleteKey(ctx context.Context, workspaceID, keyID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	junk := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, junk); err != nil {
		return fmt.Errorf("generate scrub bytes: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE temporal_keys SET material = $1 WHERE workspace_id = $2 AND key_id = $3`, junk, workspaceID, keyID); err != nil {
		return fmt.Errorf("scrub key material: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM temporal_keys WHERE workspace_id = $1 AND key_id = $2`, workspaceID, keyID); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *postgresKeyStore) StoreParticipantKey(ctx context.Context, participantID string, private, public []byte) error {
	query := `
		INSERT INTO participant_keys (participant_id, private_key, public_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_id) DO UPDATE
			SET private_key = EXCLUDED.private_key, public_key = EXCLUDED.public_key
	`
	_, err := s.pool.Exec(ctx, query, participantID, private, public)
	if err != nil {
		return fmt.Errorf("store participant key: %w", err)
	}
	return nil
}

func (s *postgresKeyStore) GetParticipantPrivate(ctx context.Context, participantID string) ([]byte, error) {
	query := `SELECT private_key FROM participant_keys WHERE participant_id = $1`
	var private []byte
	err := s.pool.QueryRow(ctx, query, participantID).Scan(&private)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant private key: %w", err)
	}
	return private, nil
}

func (s *postgresKeyStore) Close() error {
	s.pool.Close()
	return nil
}
