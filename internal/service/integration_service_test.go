package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/models"
)

type mockOAuth struct {
	mockRefresher
	authCodeURLFunc func(state string) string
	exchangeFunc    func(ctx context.Context, code string) (*TokenSet, error)
}

func (m *mockOAuth) AuthCodeURL(state string) string {
	if m.authCodeURLFunc != nil {
		return m.authCodeURLFunc(state)
	}
	return ""
}

func (m *mockOAuth) Exchange(ctx context.Context, code string) (*TokenSet, error) {
	if m.exchangeFunc != nil {
		return m.exchangeFunc(ctx, code)
	}
	return nil, errors.New("not implemented")
}

func newTestIntegrationService(store *memStore, oauth *mockOAuth) *IntegrationService {
	s := NewIntegrationService(store, map[models.Provider]OAuthProvider{models.ProviderGmail: oauth}, zap.NewNop())
	s.now = func() time.Time { return baseTime }
	return s
}

func TestIntegrationService_AuthURL(t *testing.T) {
	oauth := &mockOAuth{authCodeURLFunc: func(state string) string { return "https://accounts.example.com/auth?state=" + state }}
	s := newTestIntegrationService(newMemStore(), oauth)

	url, err := s.AuthURL(models.ProviderGmail, "xyz")
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.example.com/auth?state=xyz", url)

	_, err = s.AuthURL(models.ProviderMicrosoftGraph, "xyz")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestIntegrationService_ConnectLifecycle(t *testing.T) {
	store := newMemStore()
	exchanges := []*TokenSet{
		{AccessToken: "a-1", RefreshToken: "r-1", Scope: "gmail.readonly", AccountEmail: "me@example.com"},
		{AccessToken: "a-2", ExpiresAt: baseTime.Add(30 * time.Minute)},
	}
	oauth := &mockOAuth{exchangeFunc: func(ctx context.Context, code string) (*TokenSet, error) {
		next := exchanges[0]
		exchanges = exchanges[1:]
		return next, nil
	}}
	s := newTestIntegrationService(store, oauth)
	ctx := context.Background()

	first, err := s.Connect(ctx, "user-1", models.ProviderGmail, "code-1")
	require.NoError(t, err)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(baseTime.Add(DefaultTokenTTL)))

	status, err := s.Status(ctx, "user-1", models.ProviderGmail)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "me@example.com", status.AccountEmail)

	require.NoError(t, s.Disconnect(ctx, "user-1", models.ProviderGmail))
	status, err = s.Status(ctx, "user-1", models.ProviderGmail)
	require.NoError(t, err)
	assert.False(t, status.Connected)
	require.Len(t, store.integrations, 1, "disconnect keeps the record")

	// Reconnecting reactivates the same record and keeps the earlier refresh token
	second, err := s.Connect(ctx, "user-1", models.ProviderGmail, "code-2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "r-1", second.RefreshToken)
	assert.Equal(t, "me@example.com", second.AccountEmail)
	assert.True(t, store.integrations[first.ID].IsActive)
	assert.Equal(t, "a-2", store.integrations[first.ID].AccessToken)
}

func TestIntegrationService_DisconnectUnknown(t *testing.T) {
	err := newTestIntegrationService(newMemStore(), &mockOAuth{}).Disconnect(context.Background(), "user-1", models.ProviderGmail)
	assert.ErrorIs(t, err, ErrIntegrationNotFound)
}

func TestIntegrationService_ExchangeFailure(t *testing.T) {
	store := newMemStore()
	_, err := newTestIntegrationService(store, &mockOAuth{}).Connect(context.Background(), "user-1", models.ProviderGmail, "bad")
	require.Error(t, err)
	assert.Empty(t, store.integrations)
}
