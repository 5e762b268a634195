// Package oauth wraps golang.org/x/oauth2 for the providers the portal
// connects to: consent URL, code exchange and refresh.
package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/tasks/v1"

	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/service"
)

var identityScopes = []string{"openid", "email"}

// Scopes returns the OAuth scopes requested for provider
func Scopes(provider models.Provider) []string {
	var scopes []string
	switch provider {
	case models.ProviderGmail:
		scopes = []string{gmail.GmailReadonlyScope}
	case models.ProviderGoogleCalendar:
		scopes = []string{calendar.CalendarScope}
	case models.ProviderGoogleTasks:
		scopes = []string{tasks.TasksScope}
	case models.ProviderMicrosoftGraph:
		scopes = []string{"offline_access", "User.Read", "Calendars.ReadWrite"}
	}
	return append(scopes, identityScopes...)
}

// Provider is one OAuth client configuration
type Provider struct {
	config *oauth2.Config
	client *http.Client
}

// New builds a Provider from an explicit config
func New(config *oauth2.Config) *Provider {
	return &Provider{config: config}
}

func NewGoogle(clientID, clientSecret, redirectURL string, provider models.Provider) *Provider {
	return New(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes(provider),
	})
}

func NewMicrosoft(clientID, clientSecret, tenant, redirectURL string) *Provider {
	return New(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
		Scopes:       Scopes(models.ProviderMicrosoftGraph),
	})
}

// SetHTTPClient overrides the client used against the token endpoint
func (p *Provider) SetHTTPClient(client *http.Client) {
	p.client = client
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	if p.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// AuthCodeURL asks for offline access and forces the consent screen so a
// refresh token is always issued.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens
func (p *Provider) Exchange(ctx context.Context, code string) (*service.TokenSet, error) {
	token, err := p.config.Exchange(p.withClient(ctx), code)
	if err != nil {
		return nil, classify(err)
	}

	set := &service.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		set.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		set.AccountEmail = emailFromIDToken(idToken)
	}
	return set, nil
}

// RefreshToken exchanges refreshToken for a new access token
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*service.TokenRefreshResult, error) {
	source := p.config.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, classify(err)
	}

	result := &service.TokenRefreshResult{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		result.RefreshToken = token.RefreshToken
	}
	return result, nil
}

// classify turns grant rejections into ErrReauthorizationRequired. Anything
// else (network, 5xx) stays a plain error.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return fmt.Errorf("failed to reach token endpoint: %w", err)
	}

	switch retrieveErr.ErrorCode {
	case "invalid_grant", "invalid_client", "unauthorized_client":
		return fmt.Errorf("%w: %s", service.ErrReauthorizationRequired, retrieveErr.ErrorCode)
	}
	if retrieveErr.Response != nil {
		switch retrieveErr.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return fmt.Errorf("%w: token endpoint returned %d", service.ErrReauthorizationRequired, retrieveErr.Response.StatusCode)
		}
	}
	return fmt.Errorf("token endpoint error: %w", err)
}

// emailFromIDToken reads the email claim. The token came straight from the
// token endpoint over TLS, so the signature is not checked.
func emailFromIDToken(idToken string) string {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}

	var claims struct {
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ""
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.PreferredUsername
}
