package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// AuthenticatedUser holds the claims the API cares about
type AuthenticatedUser struct {
	Sub      string   `json:"sub"`
	Iss      string   `json:"iss"`
	ClientId string   `json:"client_id"`
	Email    string   `json:"email,omitempty"`
	Exp      int64    `json:"exp"`
	Iat      int64    `json:"iat"`
	Aud      []string `json:"aud"`
	Roles    []string `json:"roles"`
	Scopes   []string `json:"scopes"`
}

// JwtAuthenticator validates bearer tokens either against a JWKS endpoint or
// against an HS256 shared secret.
type JwtAuthenticator struct {
	JwksUri string

	secret     []byte
	cacheTTL   time.Duration
	httpClient *http.Client

	mu        sync.Mutex
	keySet    jwk.Set
	fetchedAt time.Time
}

// NewJwtAuthenticator validates RS/ES signed tokens with keys from jwksUri
func NewJwtAuthenticator(jwksUri string) *JwtAuthenticator {
	return &JwtAuthenticator{
		JwksUri:    jwksUri,
		cacheTTL:   5 * time.Minute,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewHMACAuthenticator validates HS256 tokens signed with secret
func NewHMACAuthenticator(secret string) *JwtAuthenticator {
	return &JwtAuthenticator{secret: []byte(secret), cacheTTL: 5 * time.Minute}
}

// ValidateToken checks the signature and standard time claims
func (a *JwtAuthenticator) ValidateToken(tokenString string) (*AuthenticatedUser, error) {
	if len(a.secret) == 0 && a.JwksUri == "" {
		return nil, errors.New("JWKS URI not configured")
	}

	token, err := jwt.Parse(tokenString, a.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return a.mapClaimsToUser(claims)
}

func (a *JwtAuthenticator) keyFunc(token *jwt.Token) (interface{}, error) {
	if len(a.secret) > 0 {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}

	switch token.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.fetchKey(ctx, kid)
}

// fetchKey returns the raw public key for kid, refreshing the cached key set
// once it is older than cacheTTL.
func (a *JwtAuthenticator) fetchKey(ctx context.Context, kid string) (interface{}, error) {
	set, err := a.keys(ctx)
	if err != nil {
		return nil, err
	}

	var key jwk.Key
	if kid != "" {
		k, ok := set.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("key %q not found in JWKS", kid)
		}
		key = k
	} else if set.Len() == 1 {
		key, _ = set.Key(0)
	} else {
		return nil, errors.New("token has no kid and JWKS holds several keys")
	}

	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return raw, nil
}

func (a *JwtAuthenticator) keys(ctx context.Context) (jwk.Set, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.keySet != nil && time.Since(a.fetchedAt) < a.cacheTTL {
		return a.keySet, nil
	}

	client := a.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	set, err := jwk.Fetch(ctx, a.JwksUri, jwk.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	a.keySet = set
	a.fetchedAt = time.Now()
	return set, nil
}

func (a *JwtAuthenticator) mapClaimsToUser(claims map[string]interface{}) (*AuthenticatedUser, error) {
	user := &AuthenticatedUser{
		Sub:      stringClaim(claims, "sub"),
		Iss:      stringClaim(claims, "iss"),
		ClientId: stringClaim(claims, "client_id"),
		Email:    stringClaim(claims, "email"),
		Exp:      intClaim(claims, "exp"),
		Iat:      intClaim(claims, "iat"),
		Aud:      stringsClaim(claims, "aud"),
		Roles:    stringsClaim(claims, "roles"),
		Scopes:   stringsClaim(claims, "scopes"),
	}
	return user, nil
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return s
}

func intClaim(claims map[string]interface{}, key string) int64 {
	switch v := claims[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// stringsClaim accepts a single string or a list.
func stringsClaim(claims map[string]interface{}, key string) []string {
	switch v := claims[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// IssueHMACToken signs an HS256 token for subject. It serves local setups
// that run with a shared secret instead of an identity provider.
func IssueHMACToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
