package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgsecrets "github.com/insightgrid/analytics-gateway/pkg/secrets"
)

// Resolver turns a tenant's opaque credential reference into the admin
// username/password pair for its analytics service, caching results locally
// to reduce secret store round trips.
//
// The reference is used verbatim as the secret store key; its structure is
// owned by whoever provisions tenants, not by the gateway.
type Resolver struct {
	logger   *zap.Logger
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[pkgsecrets.Credentials]
}

// NewResolver constructs a credential resolver.
func NewResolver(
	logger *zap.Logger,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[pkgsecrets.Credentials],
) *Resolver {
	return &Resolver{
		logger:   logger,
		provider: provider,
		cache:    cache,
	}
}

// Resolve fetches or returns cached admin credentials for a credential reference.
func (r *Resolver) Resolve(ctx context.Context, credentialRef string) (pkgsecrets.Credentials, error) {
	if creds, ok := r.cache.Get(credentialRef); ok {
		return creds, nil
	}

	secretMap, err := r.provider.GetSecret(ctx, credentialRef)
	if err != nil {
		r.logger.Warn("secrets.credential_fetch_failed",
			zap.String("ref", credentialRef),
			zap.Error(err))
		return pkgsecrets.Credentials{}, fmt.Errorf("resolve credential ref %q: %w", credentialRef, err)
	}

	creds := pkgsecrets.Credentials{
		Username: secretMap["username"],
		Password: secretMap["password"],
	}
	if creds.Username == "" || creds.Password == "" {
		return pkgsecrets.Credentials{}, fmt.Errorf("credential ref %q missing username or password", credentialRef)
	}

	r.cache.Put(credentialRef, creds)

	r.logger.Info("secrets.credential_resolved", zap.String("ref", credentialRef))
	return creds, nil
}

// Bust drops a cached credential, forcing a fresh secret store fetch on the
// next Resolve. Used when a tenant rotates its admin credential.
func (r *Resolver) Bust(credentialRef string) {
	r.cache.Bust(credentialRef)
}
