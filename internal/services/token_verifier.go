package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/lasttime-backend/internal/domain"
	"github.com/yungbote/lasttime-backend/internal/platform/apierr"
	"github.com/yungbote/lasttime-backend/internal/platform/logger"
)

// TokenVerifier turns a raw bearer credential into a verified identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*types.Identity, error)
}

// VerifierStrategy validates credentials issued by a single provider.
type VerifierStrategy interface {
	Name() string
	Verify(ctx context.Context, raw string) (*types.Identity, error)
}

type tokenVerifier struct {
	log        *logger.Logger
	strategies []VerifierStrategy
}

// NewTokenVerifier tries strategies in the given order and stops at the first
// success.
func NewTokenVerifier(baseLog *logger.Logger, strategies ...VerifierStrategy) TokenVerifier {
	active := make([]VerifierStrategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			active = append(active, s)
		}
	}
	log := baseLog.With("service", "TokenVerifier")
	if len(active) == 0 {
		log.Warn("No identity providers configured; every request will be rejected")
	}
	return &tokenVerifier{log: log, strategies: active}
}

func (v *tokenVerifier) Verify(ctx context.Context, raw string) (*types.Identity, error) {
	ctx, span := otel.Tracer("lasttime/auth").Start(ctx, "auth.verify")
	defer span.End()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		span.SetStatus(codes.Error, "missing credential")
		return nil, apierr.Unauthorized(errors.New("missing bearer token"))
	}
	if len(v.strategies) == 0 {
		span.SetStatus(codes.Error, "no providers")
		return nil, apierr.Unauthorized(errors.New("no identity providers configured"))
	}

	reasons := make([]string, 0, len(v.strategies))
	for _, s := range v.strategies {
		id, err := s.Verify(ctx, raw)
		if err == nil && id != nil && id.UserID != "" {
			span.SetAttributes(attribute.String("auth.provider", id.Provider))
			return id, nil
		}
		if err == nil {
			err = errors.New("empty subject")
		}
		reasons = append(reasons, fmt.Sprintf("%s: %v", s.Name(), err))
	}

	msg := "invalid token (" + strings.Join(reasons, "; ") + ")"
	span.SetStatus(codes.Error, "all providers rejected the token")
	v.log.Debug("Token rejected", "reasons", msg)
	return nil, apierr.Unauthorized(errors.New(msg))
}
