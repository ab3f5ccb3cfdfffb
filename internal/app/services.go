package app

import (
	"context"
	"net/http"
	"time"

	"github.com/yungbote/lasttime-backend/internal/data/db"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
	"github.com/yungbote/lasttime-backend/internal/services"
)

type Services struct {
	Categories  services.CategoryService
	Activities  services.ActivityService
	Verifier    services.TokenVerifier
	RateLimiter services.RateLimiter

	// memLimiter is set when counters live in process memory.
	memLimiter *services.MemoryRateLimiter
}

func wireServices(ctx context.Context, store *db.Service, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	out := Services{
		Categories: services.NewCategoryService(store, log, reposet.Category, reposet.ActivityRecord),
		Activities: services.NewActivityService(store, log, reposet.Category, reposet.ActivityRecord),
		Verifier:   services.NewTokenVerifier(log, wireStrategies(ctx, log, cfg.Auth)...),
	}

	if clients.Redis != nil {
		out.RateLimiter = services.NewRedisRateLimiter(log, clients.Redis, cfg.RateLimit.KeyPrefix, cfg.RateLimit.Window)
		log.Info("Rate limit counters in redis", "prefix", cfg.RateLimit.KeyPrefix)
	} else {
		mem := services.NewMemoryRateLimiter(log, cfg.RateLimit.Window)
		out.RateLimiter = mem
		out.memLimiter = mem
	}
	return out, nil
}

// wireStrategies returns the configured providers, Google first. A provider
// with incomplete configuration is skipped.
func wireStrategies(ctx context.Context, log *logger.Logger, cfg AuthConfig) []services.VerifierStrategy {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	var out []services.VerifierStrategy

	if cfg.GoogleClientID != "" {
		g, err := services.NewGoogleVerifier(ctx, cfg.GoogleClientID, httpClient)
		if err != nil {
			log.Warn("Google sign-in disabled", "error", err)
		} else {
			out = append(out, g)
		}
	} else {
		log.Warn("Google sign-in disabled", "reason", "GOOGLE_CLIENT_ID not set")
	}

	a, err := services.NewAppleVerifier(services.AppleVerifierConfig{
		BundleID:   cfg.AppleBundleID,
		Issuer:     cfg.AppleIssuer,
		TeamID:     cfg.AppleTeamID,
		KeyID:      cfg.AppleKeyID,
		PublicKey:  cfg.ApplePublicKey,
		JWKSURL:    cfg.AppleJWKSURL,
		JWKSTTL:    cfg.AppleJWKSTTL,
		HTTPClient: httpClient,
		Leeway:     30 * time.Second,
	})
	if err != nil {
		log.Warn("Apple sign-in disabled", "error", err)
	} else {
		out = append(out, a)
	}
	return out
}
