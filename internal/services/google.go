package services

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is what a verified Google ID token tells us about its holder.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

//go:generate mockgen -destination=../mocks/mock_google_verifier.go -package=mocks github.com/huangang/studyroom/internal/services GoogleVerifier

// GoogleVerifier checks a Google Sign-In credential.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (*GoogleIdentity, error)
}

type idTokenVerifier struct {
	clientID string
}

// NewGoogleVerifier returns a verifier that checks the token signature
// against Google's published keys and the audience against clientID.
// It returns nil when no client ID is configured.
func NewGoogleVerifier(clientID string) GoogleVerifier {
	if clientID == "" {
		return nil
	}
	return &idTokenVerifier{clientID: clientID}
}

func (v *idTokenVerifier) Verify(ctx context.Context, credential string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, credential, v.clientID)
	if err != nil {
		return nil, err
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errors.New("token carries no email")
	}
	verified, _ := payload.Claims["email_verified"].(bool)
	name, _ := payload.Claims["name"].(string)

	return &GoogleIdentity{
		Subject:       payload.Subject,
		Email:         email,
		EmailVerified: verified,
		Name:          name,
	}, nil
}
