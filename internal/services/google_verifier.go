package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	types "github.com/yungbote/lasttime-backend/internal/domain"
)

// GoogleTokenValidator is satisfied by *idtoken.Validator.
type GoogleTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

type googleVerifier struct {
	clientID  string
	validator GoogleTokenValidator
}

// NewGoogleVerifier validates Google ID tokens for clientID. Google's signing
// certificates are fetched and cached by the validator.
func NewGoogleVerifier(ctx context.Context, clientID string, httpClient *http.Client) (VerifierStrategy, error) {
	var opts []option.ClientOption
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google id token validator: %w", err)
	}
	return NewGoogleVerifierWithValidator(clientID, v)
}

func NewGoogleVerifierWithValidator(clientID string, validator GoogleTokenValidator) (VerifierStrategy, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID is required")
	}
	if validator == nil {
		return nil, errors.New("google validator is required")
	}
	return &googleVerifier{clientID: clientID, validator: validator}, nil
}

func (g *googleVerifier) Name() string { return types.ProviderGoogle }

func (g *googleVerifier) Verify(ctx context.Context, raw string) (*types.Identity, error) {
	payload, err := g.validator.Validate(ctx, raw, g.clientID)
	if err != nil {
		return nil, err
	}
	if payload == nil || strings.TrimSpace(payload.Subject) == "" {
		return nil, errors.New("missing sub")
	}
	email, _ := payload.Claims["email"].(string)
	return &types.Identity{
		UserID:   payload.Subject,
		Email:    email,
		Provider: types.ProviderGoogle,
	}, nil
}
