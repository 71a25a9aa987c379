package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"shortener/internal/model"
	"shortener/internal/service"
)

// fakeAuthService resolves exactly one token to one user.
type fakeAuthService struct {
	validToken string
	user       *model.User
}

func (f *fakeAuthService) Register(ctx context.Context, email, plaintext string) (*model.User, error) {
	panic("not used")
}

func (f *fakeAuthService) Login(ctx context.Context, email, plaintext string) (string, error) {
	panic("not used")
}

func (f *fakeAuthService) CurrentUser(ctx context.Context, tokenStr string) (*model.User, error) {
	if tokenStr == f.validToken {
		return f.user, nil
	}
	return nil, service.ErrInvalidCredentials
}

func setupAuthRouter(auth service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/protected", RequireAuth(auth), func(c *gin.Context) {
		user := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": user.ID})
	})
	return r
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	r := setupAuthRouter(&fakeAuthService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_TOKEN")
}

func TestRequireAuth_NotBearer(t *testing.T) {
	r := setupAuthRouter(&fakeAuthService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_TOKEN")
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	r := setupAuthRouter(&fakeAuthService{validToken: "good-token"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestRequireAuth_ValidToken(t *testing.T) {
	user := model.NewUser("alice@example.com", "digest")
	r := setupAuthRouter(&fakeAuthService{validToken: "good-token", user: user})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.ID)
}

func TestCurrentUser_Unset(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Nil(t, CurrentUser(c))
}
