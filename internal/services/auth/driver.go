package auth

import (
	"context"

	"github.com/fanflow/fanflow/internal/models"
)

// Outcome is what the login page is currently showing
type Outcome int

const (
	// OutcomeNone means neither marker is present yet
	OutcomeNone Outcome = iota
	// OutcomeVerified means the authenticated-home marker is visible
	OutcomeVerified
	// OutcomeCredentialError means the site rejected the credentials
	OutcomeCredentialError
)

// pageDriver abstracts the login page interactions so the state machine can
// run against a stub in tests.
type pageDriver interface {
	// Navigate opens the login page
	Navigate(ctx context.Context) error
	// SubmitLogin fills the credential form and submits it
	SubmitLogin(ctx context.Context, username, password string) error
	// CheckOutcome inspects the page for a success or credential-error
	// marker without waiting.
	CheckOutcome(ctx context.Context) (Outcome, error)
	// Snapshot captures a screenshot and the page HTML for diagnostics
	Snapshot(ctx context.Context) (screenshot []byte, html string, err error)
}

// challengeResolver abstracts the solver bridge for the state machine:
// intercepted challenges arrive on Requests, Resolve turns one into a
// delivered token or a classified error.
type challengeResolver interface {
	Requests() <-chan *models.ChallengeRequest
	Resolve(ctx context.Context, req *models.ChallengeRequest) error
}
