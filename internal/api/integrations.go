package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vipul43/privatezone/internal/models"
)

const stateCookie = "pz_oauth_state"

// integrationProviders maps route names onto providers
var integrationProviders = map[string]models.Provider{
	"gmail":                               models.ProviderGmail,
	"google-calendar":                     models.ProviderGoogleCalendar,
	string(models.ProviderGoogleCalendar): models.ProviderGoogleCalendar,
	"google-tasks":                        models.ProviderGoogleTasks,
	string(models.ProviderGoogleTasks):    models.ProviderGoogleTasks,
	"microsoft":                           models.ProviderMicrosoftGraph,
	string(models.ProviderMicrosoftGraph): models.ProviderMicrosoftGraph,
}

// routeNames is the canonical route segment for each provider
var routeNames = map[models.Provider]string{
	models.ProviderGmail:          "gmail",
	models.ProviderGoogleCalendar: "google-calendar",
	models.ProviderGoogleTasks:    "google-tasks",
	models.ProviderMicrosoftGraph: "microsoft",
}

// CallbackURL is the OAuth redirect for provider under the public
// integrations base, e.g. https://portal.example.com/api/integrations.
func CallbackURL(base string, provider models.Provider) string {
	return strings.TrimRight(base, "/") + "/" + routeNames[provider] + "/callback"
}

func integrationProvider(c *gin.Context) (models.Provider, bool) {
	provider, ok := integrationProviders[c.Param("provider")]
	if !ok {
		badRequest(c, fmt.Sprintf("unsupported provider %q", c.Param("provider")))
	}
	return provider, ok
}

// connect redirects to the provider consent screen. The state travels in a
// short-lived cookie and is checked on the callback.
func (s *Server) connect(c *gin.Context) {
	provider, ok := integrationProvider(c)
	if !ok {
		return
	}

	state := uuid.NewString()
	url, err := s.services.Integrations.AuthURL(provider, state)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/api/integrations", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, url)
}

func (s *Server) callback(c *gin.Context) {
	provider, ok := integrationProvider(c)
	if !ok {
		return
	}
	if reason := c.Query("error"); reason != "" {
		badRequest(c, fmt.Sprintf("authorization denied: %s", reason))
		return
	}

	code := c.Query("code")
	if code == "" {
		badRequest(c, "code is required")
		return
	}
	expected, err := c.Cookie(stateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(expected), []byte(c.Query("state"))) != 1 {
		badRequest(c, "state mismatch")
		return
	}
	c.SetCookie(stateCookie, "", -1, "/api/integrations", "", c.Request.TLS != nil, true)

	integration, err := s.services.Integrations.Connect(c.Request.Context(), currentUser(c), provider, code)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"provider":     integration.Provider,
		"accountEmail": integration.AccountEmail,
	})
}

func (s *Server) status(c *gin.Context) {
	provider, ok := integrationProvider(c)
	if !ok {
		return
	}

	status, err := s.services.Integrations.Status(c.Request.Context(), currentUser(c), provider)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) disconnect(c *gin.Context) {
	provider, ok := integrationProvider(c)
	if !ok {
		return
	}

	if err := s.services.Integrations.Disconnect(c.Request.Context(), currentUser(c), provider); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
