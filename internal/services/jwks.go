package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultJWKSTTL = 6 * time.Hour
	// jwksMinRefresh bounds how often lookups may hit the endpoint.
	jwksMinRefresh = time.Minute
)

// ----- JWKS cache (supports RSA + EC) -----

type jwksCache struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	minRefresh time.Duration
	now        func() time.Time

	mu          sync.RWMutex
	keys        map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
	lastErr     error

	group singleflight.Group
}

func newJWKSCache(httpClient *http.Client, url string, ttl time.Duration) *jwksCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = defaultJWKSTTL
	}
	return &jwksCache{
		httpClient: httpClient,
		url:        url,
		ttl:        ttl,
		minRefresh: jwksMinRefresh,
		now:        time.Now,
		keys:       map[string]any{},
	}
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`

	// RSA
	N string `json:"n"`
	E string `json:"e"`

	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func (j *jwksCache) getKey(ctx context.Context, kid string) (any, error) {
	if strings.TrimSpace(kid) == "" {
		return nil, errors.New("missing kid")
	}
	j.mu.RLock()
	key := j.keys[kid]
	now := j.now()
	stale := now.Sub(j.fetchedAt) > j.ttl
	throttled := !j.lastAttempt.IsZero() && now.Sub(j.lastAttempt) < j.minRefresh
	lastErr := j.lastErr
	j.mu.RUnlock()

	if key != nil && (!stale || throttled) {
		return key, nil
	}
	// unknown kids refetch at most once per minRefresh
	if throttled {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}

	_, err, _ := j.group.Do("refresh", func() (any, error) {
		return nil, j.refresh(ctx)
	})
	if err != nil {
		// fall back to the cached key if present
		if key != nil {
			return key, nil
		}
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	key = j.keys[kid]
	if key == nil {
		return nil, fmt.Errorf("kid not found in jwks: %s", kid)
	}
	return key, nil
}

func (j *jwksCache) refresh(ctx context.Context) error {
	err := j.fetch(ctx)
	j.mu.Lock()
	j.lastAttempt = j.now()
	j.lastErr = err
	j.mu.Unlock()
	return err
}

func (j *jwksCache) fetch(ctx context.Context) error {
	if strings.TrimSpace(j.url) == "" {
		return errors.New("jwks url not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return err
	}
	res, err := j.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch failed: %s", res.Status)
	}

	var set jwkSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return err
	}

	next := map[string]any{}
	for _, k := range set.Keys {
		if strings.TrimSpace(k.Kid) == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			if pub, err := rsaFromModExp(k.N, k.E); err == nil {
				next[k.Kid] = pub
			}
		case "EC":
			if pub, err := ecdsaFromXY(k.Crv, k.X, k.Y); err == nil {
				next[k.Kid] = pub
			}
		}
	}
	if len(next) == 0 {
		return errors.New("jwks contained no usable keys")
	}

	j.mu.Lock()
	j.keys = next
	j.fetchedAt = j.now()
	j.mu.Unlock()
	return nil
}

func rsaFromModExp(nB64, eB64 string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eb, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

func ecdsaFromXY(crv, xB64, yB64 string) (*ecdsa.PublicKey, error) {
	if crv != "P-256" {
		return nil, fmt.Errorf("unsupported curve: %s", crv)
	}
	curve := elliptic.P256()

	xb, err := base64.RawURLEncoding.DecodeString(xB64)
	if err != nil {
		return nil, err
	}
	yb, err := base64.RawURLEncoding.DecodeString(yB64)
	if err != nil {
		return nil, err
	}
	x := new(big.Int).SetBytes(xb)
	y := new(big.Int).SetBytes(yb)
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("invalid EC point")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
