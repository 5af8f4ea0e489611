package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/auth"
	"ragchat/internal/domain"
)

type singleUserRepo struct {
	user *domain.User
}

func (r *singleUserRepo) Create(context.Context, *domain.User) error { return nil }

func (r *singleUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, nil
}

func (r *singleUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.user != nil && r.user.Email == email {
		return r.user, nil
	}
	return nil, nil
}

func (r *singleUserRepo) UpdateLastLogin(context.Context, string, time.Time) error { return nil }
func (r *singleUserRepo) ResetQuota(context.Context, string, time.Time) error      { return nil }
func (r *singleUserRepo) IncrementQuota(context.Context, string) error             { return nil }

func setupAuth(t *testing.T, active bool) (*auth.Service, string) {
	t.Helper()
	jwtService := auth.NewJWTService("test-secret", 1)
	repo := &singleUserRepo{user: &domain.User{
		ID:       "u1",
		Email:    "a@example.com",
		IsActive: active,
	}}
	token, _, err := jwtService.GenerateToken("u1", "a@example.com")
	require.NoError(t, err)
	return auth.NewService(repo, jwtService, 24*time.Hour), token
}

func runRequest(mw gin.HandlerFunc, header string) (*httptest.ResponseRecorder, domain.Identity) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var identity domain.Identity
	r.GET("/probe", mw, func(c *gin.Context) {
		identity = CallerIdentity(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, identity
}

func TestJwtAuthValidToken(t *testing.T) {
	svc, token := setupAuth(t, true)

	w, identity := runRequest(JwtAuth(svc), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RegisteredIdentity("u1"), identity)
}

func TestJwtAuthMissingHeader(t *testing.T) {
	svc, _ := setupAuth(t, true)

	w, _ := runRequest(JwtAuth(svc), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJwtAuthMalformedHeader(t *testing.T) {
	svc, token := setupAuth(t, true)

	w, _ := runRequest(JwtAuth(svc), "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJwtAuthGarbageToken(t *testing.T) {
	svc, _ := setupAuth(t, true)

	w, _ := runRequest(JwtAuth(svc), "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJwtAuthInactiveAccount(t *testing.T) {
	svc, token := setupAuth(t, false)

	w, _ := runRequest(JwtAuth(svc), "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOptionalAuthAnonymous(t *testing.T) {
	svc, _ := setupAuth(t, true)

	w, identity := runRequest(OptionalAuth(svc), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, identity.Registered())
	assert.NotEmpty(t, identity.Address)
}

func TestOptionalAuthWithToken(t *testing.T) {
	svc, token := setupAuth(t, true)

	w, identity := runRequest(OptionalAuth(svc), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RegisteredIdentity("u1"), identity)
}

func TestOptionalAuthBadTokenFallsBackToAnonymous(t *testing.T) {
	svc, _ := setupAuth(t, true)

	w, identity := runRequest(OptionalAuth(svc), "Bearer junk")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, identity.Registered())
}

func TestAdminKeyAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ingest", AdminKey("sekrit"), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	req.Header.Set("X-API-Key", "sekrit")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminKeyRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ingest", AdminKey("sekrit"), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	req.Header.Set("X-API-Key", "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminKeyUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ingest", AdminKey(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
