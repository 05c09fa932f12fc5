package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveUser       = errors.New("user is inactive")
)

const (
	// APIKeyHeader carries a static key for service clients such as the
	// operator CLI.
	APIKeyHeader = "X-API-Key"

	principalKey = "principal"
	tokenTTL     = 24 * time.Hour
)

type Claims struct {
	UserID   uint        `json:"uid"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.StandardClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   uint
	Username string
	Role     models.Role
	APIKey   bool
}

func (p *Principal) Can(action string) bool {
	return models.HasPermission(p.Role, action)
}

type Authenticator struct {
	db      *gorm.DB
	secret  []byte
	apiKeys [][]byte
	clock   clock.Clock
}

// NewAuthenticator signs user tokens with secret and accepts any API key
// matching one of the bcrypt hashes. API key callers act as supervisors.
func NewAuthenticator(db *gorm.DB, secret string, apiKeyHashes []string, clk clock.Clock) *Authenticator {
	if clk == nil {
		clk = clock.System{}
	}
	a := &Authenticator{db: db, secret: []byte(secret), clock: clk}
	for _, h := range apiKeyHashes {
		if h != "" {
			a.apiKeys = append(a.apiKeys, []byte(h))
		}
	}
	return a
}

// HashAPIKey returns the bcrypt hash to put in server.api_key_hashes.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (a *Authenticator) GenerateToken(user *models.User) (string, error) {
	now := a.clock.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(tokenTTL).Unix(),
			IssuedAt:  now.Unix(),
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Login checks a username and password and issues a token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	var user models.User
	err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}
	if !user.Active {
		return "", nil, ErrInactiveUser
	}
	token, err := a.GenerateToken(&user)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, &user, nil
}

func (a *Authenticator) parseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := &jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	tkn, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.VerifyExpiresAt(a.clock.Now().Unix(), true) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}

func (a *Authenticator) matchAPIKey(key string) bool {
	for _, h := range a.apiKeys {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// Middleware accepts either a bearer token or an API key.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(APIKeyHeader); key != "" {
			if !a.matchAPIKey(key) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
				return
			}
			c.Set(principalKey, &Principal{Username: "api-key", Role: models.RoleSupervisor, APIKey: true})
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		if len(a.secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token authentication is disabled"})
			return
		}

		claims, err := a.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := a.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user is inactive"})
			return
		}

		c.Set(principalKey, &Principal{UserID: user.ID, Username: user.Username, Role: user.Role})
		c.Next()
	}
}

// RequirePermission rejects callers whose role may not perform action.
func RequirePermission(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil || !p.Can(action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}
