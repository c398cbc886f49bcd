// README: Session token verification via the Firebase Admin SDK.
package infra

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"laundry/internal/config"
)

// ErrAuthDisabled is returned by the verifier when no Firebase project is configured.
var ErrAuthDisabled = errors.New("session verification is not configured")

// Identity is the verified caller behind a session token.
type Identity struct {
	UID  string
	Role string
}

// TokenVerifier turns a bearer token into an Identity.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Identity, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewTokenVerifier builds the Firebase-backed verifier. Without a project id
// it returns a verifier that rejects every token, so session-optional routes
// still work and session-required routes answer 401.
func NewTokenVerifier(ctx context.Context, cfg config.FirebaseConfig) (TokenVerifier, error) {
	if cfg.ProjectID == "" {
		return disabledVerifier{}, nil
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	role, _ := token.Claims["role"].(string)
	if role == "" {
		role = "customer"
	}
	return &Identity{UID: token.UID, Role: role}, nil
}

type disabledVerifier struct{}

func (disabledVerifier) VerifyIDToken(context.Context, string) (*Identity, error) {
	return nil, ErrAuthDisabled
}
