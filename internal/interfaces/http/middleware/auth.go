package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"

	"github.com/mcs-platform/mcs-gateway/internal/config"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

const (
	bearerPrefix = "Bearer "

	// identityCacheTTL bounds how long a verified token is trusted without
	// re-checking its signature. Expiry is still enforced per request.
	identityCacheTTL = 60 * time.Second
)

// Identity is the authenticated caller derived from a verified bearer token.
type Identity struct {
	Subject   string
	TenantID  string
	Scopes    []string
	ExpiresAt time.Time
}

// Authenticator verifies bearer tokens and attaches the resulting Identity
// to the gin context. Verification results are cached briefly so hot tokens
// do not pay the signature check on every request.
type Authenticator struct {
	cfg       config.JWTConfig
	log       logger.Logger
	rsaKey    *rsa.PublicKey
	verified  *cache.Cache
	renderErr func(*gin.Context, error)
}

// NewAuthenticator builds the JWT middleware. For RS256 the public key is
// parsed once up front; a malformed key is a startup error, not a 401.
func NewAuthenticator(cfg config.JWTConfig, log logger.Logger, renderErr func(*gin.Context, error)) (*Authenticator, error) {
	a := &Authenticator{
		cfg:       cfg,
		log:       log.WithComponent("auth"),
		verified:  cache.New(identityCacheTTL, 2*identityCacheTTL),
		renderErr: renderErr,
	}

	if cfg.Algorithm == config.JWTAlgorithmRS256 {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		a.rsaKey = key
	}

	return a, nil
}

// Handler is the gin middleware entrypoint.
func (a *Authenticator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := extractBearer(c)
		if err != nil {
			a.abort(c, err)
			return
		}

		identity, err := a.verify(c.Request.Context(), raw)
		if err != nil {
			a.abort(c, err)
			return
		}

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyTenantID, identity.TenantID)
		ctx = context.WithValue(ctx, constants.ContextKeyUserID, identity.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Set(constants.GinContextIdentity, identity)

		c.Next()
	}
}

// IdentityFromContext returns the Identity set by the auth middleware.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(constants.GinContextIdentity)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

func (a *Authenticator) abort(c *gin.Context, err error) {
	a.log.Warn(c.Request.Context(), "request rejected by auth",
		logger.String("reason", err.Error()),
		logger.String("path", c.Request.URL.Path),
	)
	a.renderErr(c, err)
	c.Abort()
}

func (a *Authenticator) verify(ctx context.Context, raw string) (Identity, error) {
	if v, ok := a.verified.Get(raw); ok {
		identity := v.(Identity)
		if time.Now().Before(identity.ExpiresAt) {
			return identity, nil
		}
		a.verified.Delete(raw)
		return Identity{}, errors.ErrInvalidToken("token expired")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{a.cfg.Algorithm}),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(raw, claims, a.keyFunc)
	if err != nil || !token.Valid {
		return Identity{}, errors.ErrInvalidToken("token verification failed").WithCause(err)
	}

	if a.cfg.Issuer != "" {
		iss, _ := claims.GetIssuer()
		if iss != a.cfg.Issuer {
			return Identity{}, errors.ErrInvalidToken("issuer mismatch")
		}
	}
	if a.cfg.Audience != "" {
		aud, _ := claims.GetAudience()
		if !containsAudience(aud, a.cfg.Audience) {
			return Identity{}, errors.ErrInvalidToken("audience mismatch")
		}
	}

	identity, err := identityFromClaims(claims)
	if err != nil {
		return Identity{}, err
	}

	a.verified.Set(raw, identity, identityCacheTTL)
	return identity, nil
}

func (a *Authenticator) keyFunc(token *jwt.Token) (interface{}, error) {
	switch a.cfg.Algorithm {
	case config.JWTAlgorithmHS256:
		return []byte(a.cfg.Secret), nil
	case config.JWTAlgorithmRS256:
		return a.rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", a.cfg.Algorithm)
	}
}

func identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	sub, _ := claims.GetSubject()
	if sub == "" {
		return Identity{}, errors.ErrInvalidToken("token missing sub claim")
	}

	tenantID, _ := claims["tenant_id"].(string)
	if tenantID == "" {
		return Identity{}, errors.ErrInvalidToken("token missing tenant_id claim")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Identity{}, errors.ErrInvalidToken("token missing exp claim")
	}

	return Identity{
		Subject:   sub,
		TenantID:  tenantID,
		Scopes:    scopesFromClaims(claims),
		ExpiresAt: exp.Time,
	}, nil
}

// scopesFromClaims accepts either a "scopes" string array or an OAuth-style
// space-delimited "scope" string.
func scopesFromClaims(claims jwt.MapClaims) []string {
	if raw, ok := claims["scopes"].([]interface{}); ok {
		scopes := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	if s, ok := claims["scope"].(string); ok && s != "" {
		return strings.Fields(s)
	}
	return nil
}

func extractBearer(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.ErrUnauthorized("missing authorization header")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", errors.ErrUnauthorized("authorization header is not a bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" {
		return "", errors.ErrUnauthorized("empty bearer token")
	}
	return raw, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
