// -----------------------------------------------------------------------
// Challenge Solver Bridge - page interception to solved token round trip
// -----------------------------------------------------------------------

package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/models"
)

// InjectorFunc delivers a solved token to the page callback identified by
// requestID. It reports whether the callback was found and invoked.
type InjectorFunc func(ctx context.Context, requestID, token string) (bool, error)

// Bridge converts an interactive challenge raised during login into a proof
// token: it installs the page instrumentation, receives captured challenge
// parameters over a CDP binding, exchanges them for a token via the solving
// service, and feeds the token back to the page's waiting callback.
type Bridge struct {
	solver      Solver
	logger      arbor.ILogger
	maxAttempts int
	retryDelay  time.Duration
	requests    chan *models.ChallengeRequest
}

// NewBridge creates a challenge solver bridge
func NewBridge(s Solver, config common.SolverConfig, logger arbor.ILogger) *Bridge {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &Bridge{
		solver:      s,
		logger:      logger,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		// Buffered: the CDP event callback must never block the browser
		requests: make(chan *models.ChallengeRequest, 4),
	}
}

// Install wires the bridge into a session's tab: binding first, then the
// new-document interception script, then the event listener that feeds the
// request channel.
func (b *Bridge) Install(sess *browser.Session) error {
	if !sess.Alive() {
		return fmt.Errorf("cannot install challenge bridge on dead session")
	}

	// Requests queued by an earlier session point at callbacks that no
	// longer exist; a fresh session starts with an empty channel.
	b.drain()

	chromedp.ListenTarget(sess.Tab, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != BindingName {
			return
		}

		var req models.ChallengeRequest
		if err := json.Unmarshal([]byte(called.Payload), &req); err != nil {
			b.logger.Warn().Err(err).Msg("Discarding malformed challenge payload from page")
			return
		}

		b.logger.Info().
			Str("request_id", req.RequestID).
			Str("sitekey", req.SiteKey).
			Str("pageurl", req.PageURL).
			Msg("Challenge intercepted")

		select {
		case b.requests <- &req:
		default:
			b.logger.Warn().
				Str("request_id", req.RequestID).
				Msg("Challenge request channel full, dropping")
		}
	})

	if err := chromedp.Run(sess.Tab,
		runtime.AddBinding(BindingName),
		InstallInstrumentation(),
	); err != nil {
		return fmt.Errorf("failed to install challenge instrumentation: %w", err)
	}

	return nil
}

// Requests exposes intercepted challenges to the authenticator
func (b *Bridge) Requests() <-chan *models.ChallengeRequest {
	return b.requests
}

// drain discards challenge requests left over from a previous session
func (b *Bridge) drain() {
	for {
		select {
		case req := <-b.requests:
			b.logger.Warn().
				Str("request_id", req.RequestID).
				Msg("Discarding stale challenge request from previous session")
		default:
			return
		}
	}
}

// Resolve exchanges one challenge for a token and delivers it through
// inject, retrying transient solver failures up to the configured count
// with a fixed delay. Terminal failures escalate immediately. The token is
// delivered to the page callback exactly once.
func (b *Bridge) Resolve(ctx context.Context, req *models.ChallengeRequest, inject InjectorFunc) error {
	var lastErr error

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		token, err := b.solver.Solve(ctx, req)
		if err == nil {
			delivered, injErr := inject(ctx, req.RequestID, token)
			if injErr != nil {
				return fmt.Errorf("failed to deliver token to page: %w", injErr)
			}
			if !delivered {
				return terminalError("page callback for challenge %s no longer exists", req.RequestID)
			}
			b.logger.Info().
				Str("request_id", req.RequestID).
				Int("attempt", attempt).
				Msg("Challenge token delivered to page")
			return nil
		}

		if IsTerminal(err) {
			b.logger.Error().
				Err(err).
				Str("request_id", req.RequestID).
				Msg("Challenge unsolvable, not retrying")
			return err
		}

		lastErr = err
		b.logger.Warn().
			Err(err).
			Str("request_id", req.RequestID).
			Int("attempt", attempt).
			Int("max_attempts", b.maxAttempts).
			Msg("Transient solver failure")

		if attempt < b.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.retryDelay):
			}
		}
	}

	// Exhausted retries: escalate to terminal for this login attempt
	return terminalError("challenge solving failed after %d attempts: %v", b.maxAttempts, lastErr)
}

// PageInjector returns an InjectorFunc that delivers the token to the parked
// callback inside the session's tab.
func (b *Bridge) PageInjector(sess *browser.Session) InjectorFunc {
	return func(ctx context.Context, requestID, token string) (bool, error) {
		js := fmt.Sprintf(`(() => {
			const cb = window.__ffChallengeCallbacks && window.__ffChallengeCallbacks[%q];
			if (typeof cb !== 'function') return false;
			delete window.__ffChallengeCallbacks[%q];
			cb(%q);
			return true;
		})()`, requestID, requestID, token)

		var delivered bool
		if err := chromedp.Run(sess.Tab, chromedp.Evaluate(js, &delivered)); err != nil {
			return false, err
		}
		return delivered, nil
	}
}
