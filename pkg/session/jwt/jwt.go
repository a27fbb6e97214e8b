// Package jwt provides a session resolver for stateless session tokens:
// RSA-signed JWTs verified against a JWKS (JSON Web Key Set) endpoint.
//
// The token's claims name the user, the application it was issued for and,
// optionally, the installation it is bound to. No session store is consulted.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/appgate/pkg/auth"
	"github.com/rhuss/appgate/pkg/debug"
	"github.com/rhuss/appgate/pkg/session"
)

// errJWKSUnavailable marks failures to fetch signing keys. They are server
// faults, not bad tokens.
var errJWKSUnavailable = errors.New("JWKS unavailable")

// Config holds the JWT session resolver configuration.
type Config struct {
	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// JWKSURL is the URL to fetch the JSON Web Key Set for signature verification.
	JWKSURL string

	// UserClaim is the claim holding the user id. Default: "sub".
	UserClaim string

	// UsernameClaim is the claim holding the username. Default: "username".
	UsernameClaim string

	// AppClaim is the claim naming the application the token was issued
	// for. It must equal the request's app id. Default: "app_id".
	AppClaim string

	// InstallationClaim binds the token to one installation when present.
	// Default: "installation_id".
	InstallationClaim string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.UsernameClaim == "" {
		c.UsernameClaim = "username"
	}
	if c.AppClaim == "" {
		c.AppClaim = "app_id"
	}
	if c.InstallationClaim == "" {
		c.InstallationClaim = "installation_id"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 1 * time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Resolver validates JWT session tokens against a JWKS endpoint.
type Resolver struct {
	config    Config
	jwksCache *jwksCache
}

// Ensure Resolver implements auth.SessionResolver at compile time.
var _ auth.SessionResolver = (*Resolver)(nil)

// New creates a JWT session resolver with the given configuration.
func New(cfg Config) *Resolver {
	cfg.applyDefaults()
	return &Resolver{
		config: cfg,
		jwksCache: &jwksCache{
			keys:    make(map[string]*rsa.PublicKey),
			ttl:     cfg.CacheTTL,
			jwksURL: cfg.JWKSURL,
			client:  cfg.HTTPClient,
		},
	}
}

// AuthForSessionToken implements auth.SessionResolver.
//
// Outcomes:
//   - user session auth: valid signature, claims and app binding
//   - session.InvalidToken: malformed, expired, foreign or unbound token
//   - unclassified error: the JWKS endpoint could not be reached
func (a *Resolver) AuthForSessionToken(ctx context.Context, req auth.SessionRequest) (*auth.Auth, error) {
	token, err := jwtlib.Parse(req.SessionToken, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		key, fetchErr := a.jwksCache.getKey(ctx, kid)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, fetchErr)
		}

		return key, nil
	}, a.parserOptions()...)
	if err != nil {
		if errors.Is(err, errJWKSUnavailable) {
			return nil, err
		}
		debug.Log("sessions", "session JWT validation failed", "error", err)
		return nil, session.InvalidToken()
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, session.InvalidToken()
	}

	userID := claimString(claims, a.config.UserClaim)
	if userID == "" {
		debug.Log("sessions", "session JWT missing user claim", "claim", a.config.UserClaim)
		return nil, session.InvalidToken()
	}

	if claimString(claims, a.config.AppClaim) != req.Config.AppID {
		return nil, session.InvalidToken()
	}

	installationID := req.InstallationID
	if bound := claimString(claims, a.config.InstallationClaim); bound != "" {
		if installationID != "" && installationID != bound {
			return nil, session.InvalidToken()
		}
		installationID = bound
	}

	return auth.NewUserSession(req.Config.AppID, installationID, req.SessionToken, auth.User{
		ID:       userID,
		Username: claimString(claims, a.config.UsernameClaim),
	}), nil
}

// parserOptions builds JWT parser options based on the configuration.
func (a *Resolver) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
	}

	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}

	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}

	return opts
}

// claimString extracts a string value from JWT claims.
// Returns empty string if the claim is missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		return ""
	}
	return s
}

// jwksCache caches RSA public keys fetched from a JWKS endpoint.
// It is thread-safe and supports TTL-based cache invalidation.
type jwksCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey // kid -> public key
	fetchedAt time.Time
	ttl       time.Duration
	jwksURL   string
	client    *http.Client
}

// getKey returns the RSA public key for the given kid.
// It fetches from the JWKS endpoint if the cache is expired or the kid is unknown.
func (c *jwksCache) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	if key, ok := c.keys[kid]; ok && time.Since(c.fetchedAt) < c.ttl {
		c.mu.RUnlock()
		return key, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if key, ok := c.keys[kid]; ok && time.Since(c.fetchedAt) < c.ttl {
		return key, nil
	}

	if err := c.fetchJWKS(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", errJWKSUnavailable, err)
	}

	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}

	return key, nil
}

// fetchJWKS fetches the JWKS from the configured URL and populates the key cache.
// Must be called with the write lock held.
func (c *jwksCache) fetchJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading JWKS response: %w", err)
	}

	var jwks jwksDocument
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}

		pubKey, err := parseRSAPublicKey(jwk)
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", jwk.Kid, "error", err)
			continue
		}

		keys[jwk.Kid] = pubKey
	}

	c.keys = keys
	c.fetchedAt = time.Now()

	debug.Log("sessions", "JWKS cache refreshed", "keys", len(keys), "url", c.jwksURL)
	return nil
}

// jwksDocument represents the JSON Web Key Set response.
type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single JSON Web Key.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"` // RSA modulus (base64url-encoded)
	E   string `json:"e"` // RSA public exponent (base64url-encoded)
}

// parseRSAPublicKey constructs an *rsa.PublicKey from a JWK.
func parseRSAPublicKey(jwk jwkKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	if !e.IsInt64() {
		return nil, fmt.Errorf("RSA exponent too large")
	}

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}
