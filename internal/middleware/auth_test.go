package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("middleware-secret")

type fakeRoles struct {
	perms   map[string][]string
	grants  map[uuid.UUID][]string
	lookups int
}

func (f *fakeRoles) GetPermissionsByRoleNames(_ context.Context, roleNames []string) ([]string, error) {
	f.lookups++
	var out []string
	for _, r := range roleNames {
		out = append(out, f.perms[r]...)
	}
	return out, nil
}

func (f *fakeRoles) RolesForAccount(_ context.Context, accountID uuid.UUID) ([]string, error) {
	return f.grants[accountID], nil
}

func signed(t *testing.T, key []byte, sub, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)
	return tok
}

func serve(t *testing.T, mw gin.HandlerFunc, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen *gin.Context
	r := gin.New()
	r.GET("/", mw, func(c *gin.Context) {
		seen = c
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestRequireAuth(t *testing.T) {
	InitAuth(secret, &fakeRoles{})
	sub := uuid.New()

	w, _ := serve(t, RequireAuth(), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = serve(t, RequireAuth(), "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = serve(t, RequireAuth(), "Bearer "+signed(t, []byte("other"), sub.String(), "admin"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, c := serve(t, RequireAuth(), "Bearer "+signed(t, secret, sub.String(), "buyer"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, c)
	assert.Equal(t, "buyer", c.GetString(ContextUserRole))
	require.NotNil(t, ActorID(c))
	assert.Equal(t, sub, *ActorID(c))

	w, c = serve(t, RequireAuth(), "Bearer "+signed(t, secret, "u1", "admin"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, ActorID(c), "a non-uuid subject has no actor id")
}

func TestRequirePermission_UsesGrantedRoles(t *testing.T) {
	account := uuid.New()
	roles := &fakeRoles{
		perms: map[string][]string{
			"admin":    {"approvals.read", "approvals.approve"},
			"supplier": {"approvals.submit"},
		},
		grants: map[uuid.UUID][]string{account: {"supplier"}},
	}
	InitAuth(secret, roles)

	w, _ := serve(t, RequirePermission("approvals.submit"), "Bearer "+signed(t, secret, account.String(), "buyer"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = serve(t, RequirePermission("approvals.submit"), "Bearer "+signed(t, secret, uuid.NewString(), "buyer"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = serve(t, RequirePermission("approvals.read", "approvals.approve"), "Bearer "+signed(t, secret, uuid.NewString(), "admin"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Permission codes per role are cached between requests.
	before := roles.lookups
	w, _ = serve(t, RequirePermission("approvals.read"), "Bearer "+signed(t, secret, uuid.NewString(), "admin"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, before, roles.lookups)

	ClearPermissionCache("admin")
	serve(t, RequirePermission("approvals.read"), "Bearer "+signed(t, secret, uuid.NewString(), "admin"))
	assert.Equal(t, before+1, roles.lookups)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	w, _ := serve(t, RequestLogger(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
