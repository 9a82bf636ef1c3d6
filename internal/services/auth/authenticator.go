// -----------------------------------------------------------------------
// Authenticator - drives the login form to a verified browser session
// -----------------------------------------------------------------------

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/models"
	"github.com/fanflow/fanflow/internal/services/solver"
)

// Authenticator produces a verified, authenticated browser session. It owns
// session creation, login retries and poisoned-session teardown; the job
// runner only ever sees a live session or a classified error.
type Authenticator struct {
	site   common.SiteConfig
	config common.BrowserConfig
	store  *browser.Store
	events interfaces.EventService
	logger arbor.ILogger

	// Seams for tests: production wiring is set in New
	launch      func(ctx context.Context) (*browser.Session, error)
	newDriver   func(sess *browser.Session) pageDriver
	newResolver func(sess *browser.Session) challengeResolver

	checkInterval time.Duration
	retryDelay    time.Duration
}

// New creates an authenticator wired to a real browser launcher and the
// challenge solver bridge.
func New(site common.SiteConfig, config common.BrowserConfig, launcher *browser.Launcher, bridge *solver.Bridge, store *browser.Store, events interfaces.EventService, logger arbor.ILogger) *Authenticator {
	a := &Authenticator{
		site:          site,
		config:        config,
		store:         store,
		events:        events,
		logger:        logger,
		checkInterval: time.Second,
		retryDelay:    2 * time.Second,
	}

	a.launch = func(ctx context.Context) (*browser.Session, error) {
		sess, err := launcher.Launch(ctx)
		if err != nil {
			return nil, err
		}
		if err := bridge.Install(sess); err != nil {
			sess.Close()
			return nil, err
		}
		return sess, nil
	}
	a.newDriver = func(sess *browser.Session) pageDriver {
		return newChromeDriver(sess, site, config)
	}
	a.newResolver = func(sess *browser.Session) challengeResolver {
		return &bridgeResolver{bridge: bridge, inject: bridge.PageInjector(sess)}
	}

	return a
}

// bridgeResolver binds the solver bridge to one session's page injector
type bridgeResolver struct {
	bridge *solver.Bridge
	inject solver.InjectorFunc
}

func (r *bridgeResolver) Requests() <-chan *models.ChallengeRequest {
	return r.bridge.Requests()
}

func (r *bridgeResolver) Resolve(ctx context.Context, req *models.ChallengeRequest) error {
	return r.bridge.Resolve(ctx, req, r.inject)
}

// Ensure returns the current verified session, logging in only when there is
// none. A live verified session is returned without any page interaction.
func (a *Authenticator) Ensure(ctx context.Context) (*browser.Session, error) {
	if sess := a.store.Get(); sess.Alive() && !sess.LastVerifiedAt.IsZero() {
		return sess, nil
	}
	return a.Authenticate(ctx)
}

// Invalidate tears down the current session after the runner detected it
// dead, so the next Ensure performs a fresh login.
func (a *Authenticator) Invalidate() {
	if sess := a.store.Clear(); sess != nil {
		sess.Close()
		a.logger.Warn().Msg("Browser session invalidated")
		a.publish(interfaces.EventSessionLost, nil)
	}
}

// Authenticate performs the login flow, retrying up to the configured
// attempt cap. Credential rejection is terminal on the first occurrence.
func (a *Authenticator) Authenticate(ctx context.Context) (*browser.Session, error) {
	var lastErr *Error

	for attempt := 1; attempt <= a.config.MaxLoginAttempts; attempt++ {
		sess, err := a.acquireSession(ctx)
		if err != nil {
			lastErr = &Error{Kind: FailureUnknown, Msg: fmt.Sprintf("failed to launch browser: %v", err)}
			a.logger.Warn().Err(err).Int("attempt", attempt).Msg("Browser launch failed")
			if err := a.pauseBeforeRetry(ctx, attempt); err != nil {
				return nil, lastErr
			}
			continue
		}

		drv := a.newDriver(sess)
		authErr := a.attempt(ctx, drv, a.newResolver(sess), attempt)
		if authErr == nil {
			sess.MarkVerified()
			if prev := a.store.Set(sess); prev != nil && prev != sess {
				prev.Close()
			}
			a.logger.Info().Int("attempt", attempt).Msg("Login verified")
			a.publish(interfaces.EventSessionVerified, map[string]interface{}{"attempt": attempt})
			return sess, nil
		}

		a.logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", a.config.MaxLoginAttempts).
			Str("kind", authErr.Kind.String()).
			Str("error", authErr.Msg).
			Msg("Login attempt failed")

		a.captureDiagnostics(ctx, drv, attempt, authErr)

		// A failed attempt leaves the page in an unknown state, never
		// carry that browser into the next attempt.
		sess.Close()
		if prev := a.store.Clear(); prev != nil && prev != sess {
			prev.Close()
		}

		if !authErr.retryable() {
			return nil, authErr
		}
		lastErr = authErr

		if err := a.pauseBeforeRetry(ctx, attempt); err != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = &Error{Kind: FailureUnknown, Msg: "no login attempts were made"}
	}
	return nil, &Error{
		Kind: lastErr.Kind,
		Msg:  fmt.Sprintf("login failed after %d attempts: %s", a.config.MaxLoginAttempts, lastErr.Msg),
	}
}

// pauseBeforeRetry waits the configured delay before the next login
// attempt. No delay after the final attempt.
func (a *Authenticator) pauseBeforeRetry(ctx context.Context, attempt int) error {
	if attempt >= a.config.MaxLoginAttempts || a.retryDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.retryDelay):
		return nil
	}
}

// acquireSession reuses a live but unverified session when one exists,
// otherwise launches a fresh browser.
func (a *Authenticator) acquireSession(ctx context.Context) (*browser.Session, error) {
	if sess := a.store.Get(); sess.Alive() {
		return sess, nil
	}
	sess, err := a.launch(ctx)
	if err != nil {
		return nil, err
	}
	if prev := a.store.Set(sess); prev != nil && prev != sess {
		prev.Close()
	}
	return sess, nil
}

// attempt runs one pass of the login state machine under the cumulative
// attempt deadline.
func (a *Authenticator) attempt(ctx context.Context, drv pageDriver, resolver challengeResolver, attempt int) *Error {
	attemptCtx, cancel := context.WithTimeout(ctx, a.config.LoginTimeout)
	defer cancel()

	state := StateNavigating
	a.logState(attempt, state)
	if err := drv.Navigate(attemptCtx); err != nil {
		return &Error{Kind: FailureUnknown, Msg: fmt.Sprintf("navigation to login page failed: %v", err)}
	}

	state = StateFormFilling
	a.logState(attempt, state)
	if err := drv.SubmitLogin(attemptCtx, a.site.Username, a.site.Password); err != nil {
		return &Error{Kind: FailureUnknown, Msg: fmt.Sprintf("credential form submission failed: %v", err)}
	}

	state = StateAwaiting
	a.logState(attempt, state)

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-attemptCtx.Done():
			return &Error{Kind: FailureUnknown, Msg: fmt.Sprintf("no login outcome within %s", a.config.LoginTimeout)}

		case req := <-resolver.Requests():
			state = StateSolving
			a.logState(attempt, state)
			if err := resolver.Resolve(attemptCtx, req); err != nil {
				a.publish(interfaces.EventChallengeFailed, map[string]interface{}{"request_id": req.RequestID})
				return &Error{Kind: FailureChallenge, Msg: fmt.Sprintf("challenge not solved: %v", err)}
			}
			a.publish(interfaces.EventChallengeSolved, map[string]interface{}{"request_id": req.RequestID})
			state = StateAwaiting
			a.logState(attempt, state)

		case <-ticker.C:
			outcome, err := drv.CheckOutcome(attemptCtx)
			if err != nil {
				// Transient while the page is mid-navigation, the
				// deadline bounds how long this can persist
				a.logger.Debug().Err(err).Msg("Outcome check failed")
				continue
			}
			switch outcome {
			case OutcomeVerified:
				a.logState(attempt, StateVerified)
				return nil
			case OutcomeCredentialError:
				a.logState(attempt, StateFailed)
				return &Error{Kind: FailureCredentials, Msg: "site rejected the account credentials"}
			}
		}
	}
}

func (a *Authenticator) logState(attempt int, state State) {
	a.logger.Debug().Int("attempt", attempt).Str("state", state.String()).Msg("Login state")
}

func (a *Authenticator) publish(eventType interfaces.EventType, payload map[string]interface{}) {
	if a.events == nil {
		return
	}
	_ = a.events.Publish(context.Background(), interfaces.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
