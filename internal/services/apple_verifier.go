package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	types "github.com/yungbote/lasttime-backend/internal/domain"
)

const DefaultAppleJWKSURL = "https://appleid.apple.com/auth/keys"

type AppleVerifierConfig struct {
	BundleID string
	// Issuer defaults to TeamID.
	Issuer string
	TeamID string
	KeyID  string
	// PublicKey is a PEM block, or base64 of a PEM block or DER bytes. When set
	// it takes precedence over the JWKS endpoint.
	PublicKey  string
	JWKSURL    string
	JWKSTTL    time.Duration
	HTTPClient *http.Client
	Leeway     time.Duration
}

type appleVerifier struct {
	audience  string
	issuer    string
	keyID     string
	staticKey *ecdsa.PublicKey
	jwks      *jwksCache
	leeway    time.Duration
	now       func() time.Time
}

func NewAppleVerifier(cfg AppleVerifierConfig) (VerifierStrategy, error) {
	audience := strings.TrimSpace(cfg.BundleID)
	if audience == "" {
		return nil, errors.New("APPLE_BUNDLE_ID is required")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = strings.TrimSpace(cfg.TeamID)
	}
	if issuer == "" {
		return nil, errors.New("APPLE_ISSUER or APPLE_TEAM_ID is required")
	}

	v := &appleVerifier{
		audience: audience,
		issuer:   issuer,
		keyID:    strings.TrimSpace(cfg.KeyID),
		leeway:   cfg.Leeway,
		now:      time.Now,
	}
	if strings.TrimSpace(cfg.PublicKey) != "" {
		key, err := parseApplePublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("APPLE_PUBLIC_KEY: %w", err)
		}
		v.staticKey = key
		return v, nil
	}
	url := strings.TrimSpace(cfg.JWKSURL)
	if url == "" {
		url = DefaultAppleJWKSURL
	}
	v.jwks = newJWKSCache(cfg.HTTPClient, url, cfg.JWKSTTL)
	return v, nil
}

func (a *appleVerifier) Name() string { return types.ProviderApple }

func (a *appleVerifier) Verify(ctx context.Context, raw string) (*types.Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(a.audience),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	)
	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.keyFor(ctx, kid)
	})
	if err != nil {
		return nil, err
	}
	if tok == nil || !tok.Valid {
		return nil, errors.New("invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return nil, errors.New("missing sub")
	}
	email, _ := claims["email"].(string)
	return &types.Identity{
		UserID:   sub,
		Email:    email,
		Provider: types.ProviderApple,
	}, nil
}

func (a *appleVerifier) keyFor(ctx context.Context, kid string) (any, error) {
	if a.staticKey != nil {
		if a.keyID != "" && kid != "" && kid != a.keyID {
			return nil, fmt.Errorf("unexpected kid: %s", kid)
		}
		return a.staticKey, nil
	}
	return a.jwks.getKey(ctx, kid)
}

func parseApplePublicKey(raw string) (*ecdsa.PublicKey, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, `\n`, "\n"))
	if strings.HasPrefix(raw, "-----BEGIN") {
		return jwt.ParseECPublicKeyFromPEM([]byte(raw))
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("not PEM and not base64: %w", err)
	}
	if strings.HasPrefix(strings.TrimSpace(string(decoded)), "-----BEGIN") {
		return jwt.ParseECPublicKeyFromPEM(decoded)
	}
	pub, err := x509.ParsePKIXPublicKey(decoded)
	if err != nil {
		return nil, err
	}
	ec, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("key is not an EC public key")
	}
	return ec, nil
}
