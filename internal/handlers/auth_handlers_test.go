package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/storefront/storeapi/internal/ledger"
	authmw "github.com/storefront/storeapi/internal/middleware/auth"
	"github.com/storefront/storeapi/internal/models"
	"github.com/storefront/storeapi/internal/repo"
	"github.com/storefront/storeapi/internal/service"
	"github.com/storefront/storeapi/internal/tokens"
)

var (
	testAccessSecret  = []byte("access-secret")
	testRefreshSecret = []byte("refresh-secret")
)

type testEnv struct {
	E      *echo.Echo
	DB     *gorm.DB
	Users  *repo.UserRepo
	Svc    *service.TokenService
	Gate   *authmw.Gate
	Auth   *AuthHandler
	Token  *TokenHandler
	Stores *StoreHandler
	Items  *ItemHandler
	People *UserHandler
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	users := repo.NewUserRepo(db)
	stores := repo.NewStoreRepo(db)
	items := repo.NewItemRepo(db)
	svc := service.NewTokenService(ledger.New(db), testAccessSecret, testRefreshSecret, nil)
	gate := authmw.NewGate(svc, func(ctx context.Context, subject string) (*models.User, error) {
		return users.FindByUsername(ctx, subject)
	})

	return &testEnv{
		E:      echo.New(),
		DB:     db,
		Users:  users,
		Svc:    svc,
		Gate:   gate,
		Auth:   &AuthHandler{Users: users, Tokens: svc},
		Token:  &TokenHandler{Tokens: svc},
		Stores: &StoreHandler{Stores: stores, Items: items},
		Items:  &ItemHandler{Items: items},
		People: &UserHandler{Users: users},
	}
}

func (env *testEnv) doJSONRequest(method, path string, payload any, token string) (*httptest.ResponseRecorder, echo.Context) {
	var body *bytes.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// call runs a handler behind the given gate middleware, the way the router
// wires it.
func call(mw echo.MiddlewareFunc, h echo.HandlerFunc, c echo.Context) error {
	return mw(h)(c)
}

func (env *testEnv) register(t *testing.T, username string, admin bool) {
	t.Helper()
	rec, c := env.doJSONRequest(http.MethodPost, "/api/register", map[string]any{
		"name":     username,
		"username": username,
		"password": "password",
		"is_admin": admin,
	}, "")
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func (env *testEnv) login(t *testing.T, username string) (access, refresh string) {
	t.Helper()
	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth", map[string]string{
		"username": username,
		"password": "password",
	}, "")
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["access_token"].(string), resp["refresh_token"].(string)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", false)

	user, err := env.Users.FindByUsername(context.Background(), "test_user")
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotEqual(t, "password", user.PasswordHash)

	// Duplicate usernames are rejected.
	rec, c := env.doJSONRequest(http.MethodPost, "/api/register", map[string]any{
		"name":     "test_user",
		"username": "test_user",
		"password": "password",
	}, "")
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginIssuesRecordedPair(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", false)

	access, refresh := env.login(t, "test_user")
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	accessClaims, err := tokens.ParseAccess(access, testAccessSecret)
	require.NoError(t, err)
	require.True(t, accessClaims.Fresh)

	records, err := env.Svc.ListTokens(context.Background(), "test_user")
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestLoginWrongCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", false)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth", map[string]string{
		"username": "test_user",
		"password": "wrong",
	}, "")
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, c = env.doJSONRequest(http.MethodPost, "/api/auth", map[string]string{
		"username": "nobody",
		"password": "password",
	}, "")
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAccessRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", false)
	access, _ := env.login(t, "test_user")

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/logout/access", nil, access)
	require.NoError(t, call(env.Gate.RequireAuth(), env.Auth.LogoutAccess, c))
	require.Equal(t, http.StatusOK, rec.Code)

	claims, err := tokens.ParseAccess(access, testAccessSecret)
	require.NoError(t, err)
	revoked, err := env.Svc.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	require.True(t, revoked)

	// The revoked token no longer passes the gate.
	_, c = env.doJSONRequest(http.MethodDelete, "/api/logout/access", nil, access)
	err = call(env.Gate.RequireAuth(), env.Auth.LogoutAccess, c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestLogoutRefreshRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", false)
	_, refresh := env.login(t, "test_user")

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/logout/refresh", nil, refresh)
	require.NoError(t, call(env.Gate.RequireRefresh(), env.Auth.LogoutRefresh, c))
	require.Equal(t, http.StatusOK, rec.Code)

	claims, err := tokens.ParseRefresh(refresh, testRefreshSecret)
	require.NoError(t, err)
	revoked, err := env.Svc.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestTokenRefreshFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", false)
	_, refresh := env.login(t, "test_user")

	rec, c := env.doJSONRequest(http.MethodPost, "/api/token/refresh", nil, refresh)
	require.NoError(t, call(env.Gate.RequireRefresh(), env.Token.Refresh, c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	newAccess := resp["access_token"].(string)

	claims, err := tokens.ParseAccess(newAccess, testAccessSecret)
	require.NoError(t, err)
	require.False(t, claims.Fresh, "refreshed access tokens are never fresh")

	records, err := env.Svc.ListTokens(context.Background(), "test_user")
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestTokenList(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "test_user", false)
	access, _ := env.login(t, "test_user")

	rec, c := env.doJSONRequest(http.MethodGet, "/api/token", nil, access)
	require.NoError(t, call(env.Gate.RequireAuth(), env.Token.List, c))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []models.TokenRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 2)
}

func TestPruneRequiresAdminClaim(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "plain_user", false)
	env.register(t, "admin_user", true)

	plainAccess, _ := env.login(t, "plain_user")
	adminAccess, _ := env.login(t, "admin_user")

	// Seed an expired row the prune should remove.
	require.NoError(t, env.Svc.Ledger.Record(context.Background(), ledger.Entry{
		JTI:       "expired-jti",
		TokenType: models.TokenTypeAccess,
		Identity:  "plain_user",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/token", nil, plainAccess)
	require.NoError(t, call(env.Gate.RequireFresh(), env.Token.Prune, c))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, c = env.doJSONRequest(http.MethodDelete, "/api/token", nil, adminAccess)
	require.NoError(t, call(env.Gate.RequireFresh(), env.Token.Prune, c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 1, resp["deleted"])
}
