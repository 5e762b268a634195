package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vipul43/privatezone/internal/models"
)

const (
	DefaultTokenTTL    = time.Hour   // Expiry assumed when the provider omits one
	DefaultRefreshSkew = time.Minute // Refresh this long before the recorded expiry

	refreshLockTTL = 30 * time.Second
)

// TokenSource hands out a usable access token for a (user, provider) pair
type TokenSource interface {
	AccessToken(ctx context.Context, userID string, provider models.Provider) (string, error)
}

// TokenGuard returns valid access tokens, refreshing expired ones at most
// once per integration no matter how many callers race.
type TokenGuard struct {
	store      IntegrationStore
	refreshers map[models.Provider]TokenRefresher
	locker     Locker
	group      singleflight.Group
	skew       time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewTokenGuard(store IntegrationStore, refreshers map[models.Provider]TokenRefresher, logger *zap.Logger) *TokenGuard {
	return &TokenGuard{
		store:      store,
		refreshers: refreshers,
		skew:       DefaultRefreshSkew,
		now:        time.Now,
		logger:     logger,
	}
}

// SetLocker enables cross-process refresh serialization
func (g *TokenGuard) SetLocker(locker Locker) {
	g.locker = locker
}

func (g *TokenGuard) SetRefreshSkew(skew time.Duration) {
	g.skew = skew
}

// AccessToken returns the stored access token, refreshing it first when it
// is expired or about to expire.
func (g *TokenGuard) AccessToken(ctx context.Context, userID string, provider models.Provider) (string, error) {
	integration, err := g.load(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if !g.needsRefresh(integration.ExpiresAt) {
		return integration.AccessToken, nil
	}

	// The refresh outlives any single caller: other waiters share its result.
	refreshCtx := context.WithoutCancel(ctx)
	v, err, _ := g.group.Do(integration.ID, func() (interface{}, error) {
		return g.refresh(refreshCtx, userID, provider)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *TokenGuard) load(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error) {
	integration, err := g.store.GetActiveIntegration(ctx, userID, provider)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

// needsRefresh reports whether the token is expired or within skew of expiring.
// An unknown expiry is treated as valid.
func (g *TokenGuard) needsRefresh(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return !g.now().Add(g.skew).Before(*expiresAt)
}

func (g *TokenGuard) refresh(ctx context.Context, userID string, provider models.Provider) (string, error) {
	integration, err := g.load(ctx, userID, provider)
	if err != nil {
		return "", err
	}

	if g.locker != nil {
		release, err := g.locker.Acquire(ctx, "token-refresh:"+integration.ID, refreshLockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to acquire refresh lock: %w", err)
		}
		defer release()

		// Another process may have refreshed while we waited
		if integration, err = g.load(ctx, userID, provider); err != nil {
			return "", err
		}
	}
	if !g.needsRefresh(integration.ExpiresAt) {
		return integration.AccessToken, nil
	}

	log := g.logger.With(zap.String("integration_id", integration.ID), zap.String("provider", string(provider)))

	if integration.RefreshToken == "" {
		log.Warn("integration has no refresh token")
		return "", ErrReauthorizationRequired
	}
	refresher, ok := g.refreshers[provider]
	if !ok {
		return "", fmt.Errorf("%w: no token refresher for %s", ErrUnsupportedProvider, provider)
	}

	result, err := refresher.RefreshToken(ctx, integration.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrReauthorizationRequired) {
			log.Warn("refresh token rejected by provider")
			return "", err
		}
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	update := models.TokenUpdate{
		AccessToken:  result.AccessToken,
		RefreshToken: integration.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
	}
	if result.RefreshToken != "" {
		update.RefreshToken = result.RefreshToken
	}
	if update.ExpiresAt.IsZero() {
		update.ExpiresAt = g.now().Add(DefaultTokenTTL)
	}

	written, err := g.store.UpdateIntegrationTokens(ctx, integration.ID, integration.ExpiresAt, update)
	if err != nil {
		return "", fmt.Errorf("failed to update tokens: %w", err)
	}
	if !written {
		log.Info("token refreshed concurrently, using stored token")
		winner, err := g.load(ctx, userID, provider)
		if err != nil {
			return "", err
		}
		return winner.AccessToken, nil
	}

	log.Info("access token refreshed", zap.Time("expires_at", update.ExpiresAt))
	return update.AccessToken, nil
}
