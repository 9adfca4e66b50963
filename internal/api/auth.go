package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"catering/internal/audit"
)

// Staff and customer roles carried in the token's role claim
const (
	RoleAdmin    = "admin"
	RoleKitchen  = "kitchen"
	RoleDriver   = "driver"
	RoleCustomer = "customer"
)

const principalKey = "principal"

// Principal is the authenticated caller
type Principal struct {
	UserID uint
	Role   string
	Name   string
}

// SignToken issues an HS256 token for a user. Tokens are normally minted by
// the identity provider; this is used for local tooling and tests.
func SignToken(secret string, userID uint, role, name string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(userID), 10),
		"role": role,
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, raw string) (*Principal, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, errors.New("invalid subject")
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return nil, errors.New("invalid subject")
	}
	role, _ := claims["role"].(string)
	name, _ := claims["name"].(string)
	switch role {
	case RoleAdmin, RoleKitchen, RoleDriver, RoleCustomer:
	default:
		return nil, errors.New("unknown role")
	}
	return &Principal{UserID: uint(id), Role: role, Name: name}, nil
}

// bearer reads the token from the Authorization header, or from the
// access_token query parameter for websocket upgrades
func bearer(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("access_token")
}

// Authenticate validates the bearer token and attaches the caller to the
// request, including the audit actor
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		p, err := parseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(principalKey, p)
		name := p.Name
		if name == "" {
			name = p.Role + "#" + strconv.FormatUint(uint64(p.UserID), 10)
		}
		ctx := audit.WithActor(c.Request.Context(), audit.Actor{Name: name, Role: p.Role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		for _, r := range roles {
			if p != nil && p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func principal(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

func isStaff(p *Principal) bool {
	return p != nil && (p.Role == RoleAdmin || p.Role == RoleKitchen)
}
