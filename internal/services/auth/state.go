package auth

// State is the authenticator's position in the login flow. Transitions are
// data so tests and logs can observe the path taken.
type State int

const (
	StateInit State = iota
	StateNavigating
	StateFormFilling
	StateAwaiting
	StateSolving
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateNavigating:
		return "navigating"
	case StateFormFilling:
		return "form_filling"
	case StateAwaiting:
		return "awaiting_challenge_or_result"
	case StateSolving:
		return "solving"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind classifies why a login attempt ended in StateFailed
type FailureKind int

const (
	// FailureUnknown means no success, error or challenge marker appeared
	// within the attempt deadline. Retryable up to the attempt cap.
	FailureUnknown FailureKind = iota
	// FailureCredentials is the site rejecting the account. Terminal.
	FailureCredentials
	// FailureChallenge means the interactive challenge could not be
	// solved. Terminal for this login cycle.
	FailureChallenge
)

func (k FailureKind) String() string {
	switch k {
	case FailureCredentials:
		return "credentials"
	case FailureChallenge:
		return "challenge"
	default:
		return "unknown"
	}
}

// Error is a classified login failure
type Error struct {
	Kind FailureKind
	Msg  string
}

func (e *Error) Error() string {
	return "auth: " + e.Msg + " (" + e.Kind.String() + ")"
}

// retryable reports whether another login attempt could succeed. Only a
// rejected credential proves retrying is pointless; a failed challenge
// solve spends the attempt but the next attempt may not be challenged.
func (e *Error) retryable() bool {
	return e.Kind != FailureCredentials
}
