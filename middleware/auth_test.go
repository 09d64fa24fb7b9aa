package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"playjelly/models"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(a *Auth) *gin.Engine {
	r := gin.New()
	r.GET("/admin", a.AdminRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func do(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminRequiredDisabledInjectsSystemUser(t *testing.T) {
	w := do(newRouter(NewAuth("", "", false)), "")
	if w.Code != http.StatusOK || w.Body.String() != SystemUserID {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestAdminRequiredRejectsMissingAndBadTokens(t *testing.T) {
	r := newRouter(NewAuth("secret", "cron", true))
	if w := do(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", w.Code)
	}
	if w := do(r, "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}
	other := NewAuth("other-secret", "", true)
	tok, _, _ := other.IssueToken(models.User{ID: "u1", Role: models.RoleAdmin})
	if w := do(r, tok); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: %d", w.Code)
	}
}

func TestAdminRequiredAcceptsAdminToken(t *testing.T) {
	a := NewAuth("secret", "", true)
	tok, exp, err := a.IssueToken(models.User{ID: "u1", Email: "a@b.c", Role: models.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 24*time.Hour {
		t.Fatalf("expiry too short: %v", exp)
	}
	w := do(newRouter(a), tok)
	if w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}

func TestAdminRequiredForbidsViewer(t *testing.T) {
	a := NewAuth("secret", "", true)
	tok, _, _ := a.IssueToken(models.User{ID: "u2", Role: models.RoleViewer})
	if w := do(newRouter(a), tok); w.Code != http.StatusForbidden {
		t.Fatalf("viewer: %d", w.Code)
	}
}

func TestAdminRequiredRejectsExpiredAndUnsignedExpiry(t *testing.T) {
	a := NewAuth("secret", "", true)
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()})
	s, _ := expired.SignedString([]byte("secret"))
	if w := do(newRouter(a), s); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired: %d", w.Code)
	}
	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u", "role": "admin"})
	s, _ = noExp.SignedString([]byte("secret"))
	if w := do(newRouter(a), s); w.Code != http.StatusUnauthorized {
		t.Fatalf("no exp: %d", w.Code)
	}
}

func TestAdminRequiredAcceptsSchedulerToken(t *testing.T) {
	w := do(newRouter(NewAuth("secret", "cron-token", true)), "cron-token")
	if w.Code != http.StatusOK || w.Body.String() != SchedulerUserID {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
}
