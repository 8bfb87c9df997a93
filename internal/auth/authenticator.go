package auth

import (
	"context"

	"github.com/mmynk/splitbill/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// Identity issuance lives behind it so the ledger only ever sees a user ID.
type Authenticator interface {
	// Register creates a new user account and its User document.
	// Returns the created user as a Participant or an error if registration fails.
	Register(ctx context.Context, reg Registration) (models.Participant, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (models.Participant, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

// Registration carries the sign-up form.
type Registration struct {
	Email       string
	Name        string
	PhoneNumber string
	Credential  string
}
