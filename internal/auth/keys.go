package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/voiceagents/internal/models"
)

const maxKeyLifetimeDays = 730

// KeyStore persists API keys. Only hashes ever reach it.
type KeyStore interface {
	Create(ctx context.Context, k *models.APIKey) error
	List(ctx context.Context, orgID uuid.UUID) ([]models.APIKey, error)
	Revoke(ctx context.Context, orgID, id uuid.UUID) error
	GetByHash(ctx context.Context, hash string) (*models.APIKey, error)
	RecordUsage(ctx context.Context, id uuid.UUID, ip, endpoint string, at time.Time) error
}

type KeyService struct {
	store KeyStore
	now   func() time.Time
}

func NewKeyService(store KeyStore) *KeyService {
	return &KeyService{store: store, now: time.Now}
}

type CreateKeyRequest struct {
	Name          string   `json:"name"`
	Scopes        []string `json:"scopes"`
	ExpiresInDays int      `json:"expires_in_days,omitempty"`
}

// CreatedKey carries the raw secret back to the caller exactly once.
type CreatedKey struct {
	Key    *models.APIKey `json:"api_key"`
	Secret string         `json:"secret"`
}

func (s *KeyService) Create(ctx context.Context, orgID uuid.UUID, createdBy *uuid.UUID, req CreateKeyRequest) (*CreatedKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: name must be 1-100 characters", models.ErrInvalid)
	}
	if len(req.Scopes) == 0 {
		return nil, fmt.Errorf("%w: at least one scope is required", models.ErrInvalid)
	}
	scopes := make([]string, 0, len(req.Scopes))
	seen := make(map[string]bool, len(req.Scopes))
	for _, sc := range req.Scopes {
		if !KnownScope(sc) {
			return nil, fmt.Errorf("%w: unknown scope %q", models.ErrInvalid, sc)
		}
		if !seen[sc] {
			seen[sc] = true
			scopes = append(scopes, sc)
		}
	}
	if req.ExpiresInDays < 0 || req.ExpiresInDays > maxKeyLifetimeDays {
		return nil, fmt.Errorf("%w: expires_in_days must be between 0 and %d", models.ErrInvalid, maxKeyLifetimeDays)
	}

	gen, err := GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	k := &models.APIKey{
		OrganizationID: orgID,
		Name:           name,
		KeyPrefix:      gen.Prefix,
		LastFour:       gen.LastFour,
		KeyHash:        gen.Hash,
		Scopes:         scopes,
		IsActive:       true,
		CreatedBy:      createdBy,
	}
	if req.ExpiresInDays > 0 {
		exp := s.now().Add(time.Duration(req.ExpiresInDays) * 24 * time.Hour)
		k.ExpiresAt = &exp
	}

	if err := s.store.Create(ctx, k); err != nil {
		return nil, fmt.Errorf("store api key: %w", err)
	}

	return &CreatedKey{Key: k, Secret: gen.Raw}, nil
}

func (s *KeyService) List(ctx context.Context, orgID uuid.UUID) ([]models.APIKey, error) {
	return s.store.List(ctx, orgID)
}

func (s *KeyService) Revoke(ctx context.Context, orgID, id uuid.UUID) error {
	return s.store.Revoke(ctx, orgID, id)
}

// Validate resolves a raw key to its stored record. Every rejection is
// reported as ErrUnauthorized so callers cannot probe which check failed.
func (s *KeyService) Validate(ctx context.Context, raw, ip, endpoint string) (*models.APIKey, error) {
	if !ValidateAPIKeyFormat(raw) {
		return nil, fmt.Errorf("malformed api key: %w", models.ErrUnauthorized)
	}

	hash := HashAPIKey(raw)
	k, err := s.store.GetByHash(ctx, hash)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("unknown api key: %w", models.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(k.KeyHash), []byte(hash)) != 1 {
		return nil, fmt.Errorf("unknown api key: %w", models.ErrUnauthorized)
	}
	if !k.IsActive {
		return nil, fmt.Errorf("api key revoked: %w", models.ErrUnauthorized)
	}
	now := s.now()
	if k.Expired(now) {
		return nil, fmt.Errorf("api key expired: %w", models.ErrUnauthorized)
	}

	if err := s.store.RecordUsage(ctx, k.ID, ip, endpoint, now); err != nil {
		slog.Warn("failed to record api key usage", "api_key_id", k.ID, "error", err)
	}

	return k, nil
}

type PGKeyStore struct {
	db *pgxpool.Pool
}

func NewPGKeyStore(db *pgxpool.Pool) *PGKeyStore {
	return &PGKeyStore{db: db}
}

const keyColumns = `id, organization_id, name, key_prefix, last_four, key_hash, scopes, is_active,
	expires_at, usage_count, last_used_at, last_used_ip, created_by, created_at`

func scanKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(&k.ID, &k.OrganizationID, &k.Name, &k.KeyPrefix, &k.LastFour, &k.KeyHash, &k.Scopes,
		&k.IsActive, &k.ExpiresAt, &k.UsageCount, &k.LastUsedAt, &k.LastUsedIP, &k.CreatedBy, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return &k, err
}

func (s *PGKeyStore) Create(ctx context.Context, k *models.APIKey) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO api_keys (organization_id, name, key_prefix, last_four, key_hash, scopes, is_active, expires_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		k.OrganizationID, k.Name, k.KeyPrefix, k.LastFour, k.KeyHash, k.Scopes, k.IsActive, k.ExpiresAt, k.CreatedBy,
	).Scan(&k.ID, &k.CreatedAt)
}

func (s *PGKeyStore) List(ctx context.Context, orgID uuid.UUID) ([]models.APIKey, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE organization_id = $1 ORDER BY created_at DESC", orgID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := []models.APIKey{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

func (s *PGKeyStore) Revoke(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE api_keys SET is_active = false WHERE id = $1 AND organization_id = $2", id, orgID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("revoke api key: %w", models.ErrNotFound)
	}
	return nil
}

func (s *PGKeyStore) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	return scanKey(s.db.QueryRow(ctx, "SELECT "+keyColumns+" FROM api_keys WHERE key_hash = $1", hash))
}

func (s *PGKeyStore) RecordUsage(ctx context.Context, id uuid.UUID, ip, endpoint string, at time.Time) error {
	batch := &pgx.Batch{}
	batch.Queue(
		`UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = $2, last_used_ip = $3 WHERE id = $1`,
		id, at, ip)
	batch.Queue(
		`INSERT INTO api_key_usage (api_key_id, ip_address, endpoint, used_at) VALUES ($1, $2, $3, $4)`,
		id, ip, endpoint, at)
	return s.db.SendBatch(ctx, batch).Close()
}
