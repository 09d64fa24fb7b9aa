package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"playjelly/models"
)

const (
	authCookie = "playjelly_jwt"

	SystemUserID    = "system"
	SchedulerUserID = "scheduler"
)

// Auth guards admin routes with either a signed JWT carrying role=admin or
// the shared scheduler token.
type Auth struct {
	secret     []byte
	cronSecret string
	enabled    bool
	tokenTTL   time.Duration
}

func NewAuth(jwtSecret, cronSecret string, enabled bool) *Auth {
	return &Auth{secret: []byte(jwtSecret), cronSecret: cronSecret, enabled: enabled, tokenTTL: 7 * 24 * time.Hour}
}

func (a *Auth) Enabled() bool { return a.enabled }

func (a *Auth) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Feature Flag Check
		if !a.enabled {
			c.Set("userID", SystemUserID)
			c.Set("userRole", models.RoleAdmin)
			c.Next()
			return
		}

		// 2. Token Extraction
		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			if cookie, err := c.Cookie(authCookie); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		// 3. Scheduler token
		if a.cronSecret != "" && subtle.ConstantTimeCompare([]byte(tokenString), []byte(a.cronSecret)) == 1 {
			c.Set("userID", SchedulerUserID)
			c.Set("userRole", models.RoleAdmin)
			c.Next()
			return
		}

		// 4. JWT validation
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		if role, _ := claims["role"].(string); role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}

		c.Set("userID", claims["user_id"])
		c.Set("userEmail", claims["email"])
		c.Set("userRole", models.RoleAdmin)
		c.Next()
	}
}

// IssueToken signs a token for a logged in user.
func (a *Auth) IssueToken(u models.User) (string, time.Time, error) {
	exp := time.Now().Add(a.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": u.ID,
		"email":   u.Email,
		"role":    u.Role,
		"exp":     exp.Unix(),
	})
	signed, err := token.SignedString(a.secret)
	return signed, exp, err
}

// SetCookie stores the token for browser clients.
func (a *Auth) SetCookie(c *gin.Context, token string) {
	c.SetCookie(authCookie, token, int(a.tokenTTL.Seconds()), "/", "", false, true)
}

// UserID returns the authenticated user's id set by AdminRequired.
func UserID(c *gin.Context) string {
	v, _ := c.Get("userID")
	s, _ := v.(string)
	return s
}
