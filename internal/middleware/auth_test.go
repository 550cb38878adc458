package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scorecaddy/scorecaddy/internal/config"
	"github.com/scorecaddy/scorecaddy/internal/models"
)

func authTestApp(t *testing.T, cfg *config.Config) (*fiber.App, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Player{}))

	app := fiber.New()
	app.Get("/whoami", Auth(cfg, db), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": CurrentPlayer(c).ExternalID})
	})
	return app, db
}

func TestAuthDevFallback(t *testing.T) {
	app, db := authTestApp(t, &config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-Id", "dev-user-1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The first request materialized the player row.
	var count int64
	require.NoError(t, db.Model(&models.Player{}).
		Where("external_id = ?", "dev-user-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// A second request reuses it.
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, db.Model(&models.Player{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAuthMissingIdentity(t *testing.T) {
	app, _ := authTestApp(t, &config.Config{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthBearerSubject(t *testing.T) {
	// With Auth0 configured, the X-User-Id header is ignored and the bearer
	// token's subject is the identity.
	cfg := &config.Config{Auth0Domain: "t.example.auth0.com", Auth0Audience: "api"}
	app, db := authTestApp(t, cfg)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "auth0|12345",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "sub@example.com",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-User-Id", "spoofed")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var player models.Player
	require.NoError(t, db.Where("external_id = ?", "auth0|12345").First(&player).Error)
	require.NotNil(t, player.Email)
	assert.Equal(t, "sub@example.com", *player.Email)

	var spoofed int64
	require.NoError(t, db.Model(&models.Player{}).
		Where("external_id = ?", "spoofed").Count(&spoofed).Error)
	assert.Zero(t, spoofed)
}
