package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PGProvider implements Provider backed by PostgreSQL.
type PGProvider struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPGProvider constructs a PostgreSQL-backed settings provider.
func NewPGProvider(pool *pgxpool.Pool, logger *zap.Logger) *PGProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGProvider{pool: pool, logger: logger}
}

// EnsureSchema creates the settings table if it does not already exist.
// Safe to call repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenant_analytics_settings (
  tenant_id      text PRIMARY KEY,
  base_url       text NOT NULL DEFAULT '',
  credential_ref text NOT NULL DEFAULT '',
  rls_clause     text NOT NULL DEFAULT '',
  updated_at     timestamptz NOT NULL DEFAULT NOW()
);`)
	if err != nil {
		return fmt.Errorf("ensure tenant settings schema: %w", err)
	}
	return nil
}

// Resolve fetches a tenant's analytics settings.
func (p *PGProvider) Resolve(ctx context.Context, tenantID string) (Settings, error) {
	const q = `
		SELECT tenant_id, base_url, credential_ref, rls_clause
		FROM tenant_analytics_settings
		WHERE tenant_id = $1;
	`

	var s Settings
	err := p.pool.QueryRow(ctx, q, tenantID).Scan(&s.TenantID, &s.BaseURL, &s.CredentialRef, &s.RLSClause)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNoSettings
	}
	if err != nil {
		p.logger.Error("tenant.settings_query_failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return Settings{}, fmt.Errorf("resolve tenant settings for %q: %w", tenantID, err)
	}
	if !s.Configured() {
		return Settings{}, ErrNoSettings
	}
	return s, nil
}

// Upsert inserts or replaces a tenant's settings.
func (p *PGProvider) Upsert(ctx context.Context, s Settings) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO tenant_analytics_settings (tenant_id, base_url, credential_ref, rls_clause, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id)
		DO UPDATE SET
			base_url = EXCLUDED.base_url,
			credential_ref = EXCLUDED.credential_ref,
			rls_clause = EXCLUDED.rls_clause,
			updated_at = NOW();
	`, s.TenantID, s.BaseURL, s.CredentialRef, s.RLSClause)
	if err != nil {
		p.logger.Error("tenant.settings_upsert_failed",
			zap.String("tenant_id", s.TenantID),
			zap.Error(err))
		return fmt.Errorf("upsert tenant settings for %q: %w", s.TenantID, err)
	}
	return nil
}
