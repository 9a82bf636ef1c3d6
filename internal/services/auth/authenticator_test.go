package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/models"
)

type stubDriver struct {
	navigations int32
	submits     int32
	outcomes    []Outcome
	idx         int
}

func (d *stubDriver) Navigate(ctx context.Context) error {
	atomic.AddInt32(&d.navigations, 1)
	return nil
}

func (d *stubDriver) SubmitLogin(ctx context.Context, username, password string) error {
	atomic.AddInt32(&d.submits, 1)
	return nil
}

func (d *stubDriver) CheckOutcome(ctx context.Context) (Outcome, error) {
	if d.idx >= len(d.outcomes) {
		return OutcomeNone, nil
	}
	out := d.outcomes[d.idx]
	d.idx++
	return out, nil
}

func (d *stubDriver) Snapshot(ctx context.Context) ([]byte, string, error) {
	return []byte("png"), "<html></html>", nil
}

type stubResolver struct {
	requests   chan *models.ChallengeRequest
	resolveErr error
	resolved   int32
}

func newStubResolver() *stubResolver {
	return &stubResolver{requests: make(chan *models.ChallengeRequest, 1)}
}

func (r *stubResolver) Requests() <-chan *models.ChallengeRequest { return r.requests }

func (r *stubResolver) Resolve(ctx context.Context, req *models.ChallengeRequest) error {
	atomic.AddInt32(&r.resolved, 1)
	return r.resolveErr
}

func newTestAuthenticator(drv *stubDriver, resolver *stubResolver) (*Authenticator, *int32) {
	var launches int32
	a := &Authenticator{
		site: common.SiteConfig{
			BaseURL:  "https://onlyfans.com/",
			Username: "creator@example.com",
			Password: "secret",
		},
		config: common.BrowserConfig{
			MaxLoginAttempts: 2,
			LoginTimeout:     200 * time.Millisecond,
		},
		store:         browser.NewStore(),
		logger:        common.GetLogger(),
		checkInterval: 5 * time.Millisecond,
		retryDelay:    time.Millisecond,
	}
	a.launch = func(ctx context.Context) (*browser.Session, error) {
		atomic.AddInt32(&launches, 1)
		return &browser.Session{Tab: context.Background()}, nil
	}
	a.newDriver = func(sess *browser.Session) pageDriver { return drv }
	a.newResolver = func(sess *browser.Session) challengeResolver { return resolver }
	return a, &launches
}

func TestEnsureReusesVerifiedSessionWithoutNavigation(t *testing.T) {
	drv := &stubDriver{}
	a, launches := newTestAuthenticator(drv, newStubResolver())

	existing := &browser.Session{Tab: context.Background()}
	existing.MarkVerified()
	a.store.Set(existing)

	sess, err := a.Ensure(context.Background())
	require.NoError(t, err)
	assert.Same(t, existing, sess)
	assert.Equal(t, int32(0), atomic.LoadInt32(&drv.navigations), "verified session must be returned without navigating")
	assert.Equal(t, int32(0), atomic.LoadInt32(launches))
}

func TestAuthenticateVerifiesOnSuccessMarker(t *testing.T) {
	drv := &stubDriver{outcomes: []Outcome{OutcomeNone, OutcomeVerified}}
	a, _ := newTestAuthenticator(drv, newStubResolver())

	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.False(t, sess.LastVerifiedAt.IsZero())
	assert.Same(t, sess, a.store.Get(), "verified session must become the current one")
	assert.Equal(t, int32(1), atomic.LoadInt32(&drv.navigations))
	assert.Equal(t, int32(1), atomic.LoadInt32(&drv.submits))
}

func TestAuthenticateCredentialErrorIsTerminal(t *testing.T) {
	drv := &stubDriver{outcomes: []Outcome{OutcomeCredentialError}}
	a, _ := newTestAuthenticator(drv, newStubResolver())

	_, err := a.Authenticate(context.Background())
	require.Error(t, err)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, FailureCredentials, authErr.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&drv.navigations), "credential rejection must not be retried")
	assert.Nil(t, a.store.Get(), "failed login must not leave a session behind")
}

func TestAuthenticateRetriesUnknownOutcomeUpToCap(t *testing.T) {
	drv := &stubDriver{} // never reaches any outcome
	a, _ := newTestAuthenticator(drv, newStubResolver())

	_, err := a.Authenticate(context.Background())
	require.Error(t, err)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, FailureUnknown, authErr.Kind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&drv.navigations), "unknown outcome retries up to the attempt cap")
}

func TestAuthenticateSolvesChallengeThenVerifies(t *testing.T) {
	drv := &stubDriver{outcomes: []Outcome{OutcomeNone, OutcomeNone, OutcomeVerified}}
	resolver := newStubResolver()
	resolver.requests <- &models.ChallengeRequest{RequestID: "chl_login"}
	a, _ := newTestAuthenticator(drv, resolver)

	sess, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, int32(1), atomic.LoadInt32(&resolver.resolved))
}

func TestAuthenticateUnsolvableChallengeRetriesToCap(t *testing.T) {
	drv := &stubDriver{}
	resolver := &stubResolver{requests: make(chan *models.ChallengeRequest, 2)}
	resolver.resolveErr = errors.New("zero balance")
	resolver.requests <- &models.ChallengeRequest{RequestID: "chl_bad_1"}
	resolver.requests <- &models.ChallengeRequest{RequestID: "chl_bad_2"}
	a, _ := newTestAuthenticator(drv, resolver)

	_, err := a.Authenticate(context.Background())
	require.Error(t, err)

	var authErr *Error
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, FailureChallenge, authErr.Kind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&drv.navigations), "challenge failure spends the attempt but not the login cap")
	assert.Equal(t, int32(2), atomic.LoadInt32(&resolver.resolved))
}

func TestAuthenticatePausesBetweenAttempts(t *testing.T) {
	drv := &stubDriver{} // never reaches any outcome
	a, _ := newTestAuthenticator(drv, newStubResolver())
	a.config.LoginTimeout = 20 * time.Millisecond
	a.retryDelay = 50 * time.Millisecond

	start := time.Now()
	_, err := a.Authenticate(context.Background())
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond, "failed attempts must be spaced by the retry delay")
	assert.Equal(t, int32(2), atomic.LoadInt32(&drv.navigations))
}

func TestInvalidateClearsStoredSession(t *testing.T) {
	a, _ := newTestAuthenticator(&stubDriver{}, newStubResolver())
	a.store.Set(&browser.Session{Tab: context.Background()})

	a.Invalidate()
	assert.Nil(t, a.store.Get())
}

func TestClassifySnapshot(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"credential error", `<div class="b-server-error">Wrong password</div>`, "credential_error"},
		{"challenge iframe", `<iframe src="https://challenges.cloudflare.com/x"></iframe>`, "challenge_pending"},
		{"logged in", `<a href="/my/settings">Settings</a>`, "logged_in"},
		{"login form", `<form><input name="email"/></form>`, "login_form"},
		{"unknown", `<div>maintenance</div>`, "unknown_page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySnapshot(tt.html))
		})
	}
}
