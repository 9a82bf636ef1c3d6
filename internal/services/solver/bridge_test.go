package solver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/models"
)

type solverStub struct {
	calls  int32
	tokens []string
	errs   []error
}

func (s *solverStub) Solve(ctx context.Context, req *models.ChallengeRequest) (string, error) {
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.tokens) {
		return s.tokens[i], nil
	}
	return s.tokens[len(s.tokens)-1], nil
}

func bridgeConfig() common.SolverConfig {
	return common.SolverConfig{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}
}

func TestBridgeResolveDeliversTokenOnce(t *testing.T) {
	stub := &solverStub{tokens: []string{"0.token-abc"}}
	b := NewBridge(stub, bridgeConfig(), common.GetLogger())

	var injections int32
	var delivered string
	inject := func(ctx context.Context, requestID, token string) (bool, error) {
		atomic.AddInt32(&injections, 1)
		delivered = token
		assert.Equal(t, "chl_1", requestID)
		return true, nil
	}

	req := &models.ChallengeRequest{RequestID: "chl_1", SiteKey: "k", PageURL: "https://onlyfans.com/"}
	require.NoError(t, b.Resolve(context.Background(), req, inject))

	assert.Equal(t, int32(1), atomic.LoadInt32(&injections), "token must reach the page exactly once")
	assert.Equal(t, "0.token-abc", delivered)
}

func TestBridgeResolveRetriesTransientFailures(t *testing.T) {
	stub := &solverStub{
		errs:   []error{retryableError("service busy"), retryableError("service busy"), nil},
		tokens: []string{"", "", "0.eventual"},
	}
	b := NewBridge(stub, bridgeConfig(), common.GetLogger())

	var injections int32
	inject := func(ctx context.Context, requestID, token string) (bool, error) {
		atomic.AddInt32(&injections, 1)
		assert.Equal(t, "0.eventual", token)
		return true, nil
	}

	req := &models.ChallengeRequest{RequestID: "chl_2"}
	require.NoError(t, b.Resolve(context.Background(), req, inject))

	assert.Equal(t, int32(3), atomic.LoadInt32(&stub.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&injections))
}

func TestBridgeResolveTerminalFailureSkipsRetry(t *testing.T) {
	stub := &solverStub{errs: []error{terminalError("zero balance")}}
	b := NewBridge(stub, bridgeConfig(), common.GetLogger())

	inject := func(ctx context.Context, requestID, token string) (bool, error) {
		t.Fatal("no token should be injected on terminal failure")
		return false, nil
	}

	err := b.Resolve(context.Background(), &models.ChallengeRequest{RequestID: "chl_3"}, inject)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.calls))
}

func TestBridgeResolveExhaustedRetriesEscalate(t *testing.T) {
	stub := &solverStub{
		errs: []error{
			retryableError("busy"),
			retryableError("busy"),
			retryableError("busy"),
		},
	}
	b := NewBridge(stub, bridgeConfig(), common.GetLogger())

	inject := func(ctx context.Context, requestID, token string) (bool, error) {
		t.Fatal("no token should be injected when all attempts fail")
		return false, nil
	}

	err := b.Resolve(context.Background(), &models.ChallengeRequest{RequestID: "chl_4"}, inject)
	require.Error(t, err)
	assert.True(t, IsTerminal(err), "an exhausted challenge ends the login attempt")
	assert.Equal(t, int32(3), atomic.LoadInt32(&stub.calls))
}

func TestBridgeResolveCallbackGone(t *testing.T) {
	stub := &solverStub{tokens: []string{"0.token"}}
	b := NewBridge(stub, bridgeConfig(), common.GetLogger())

	inject := func(ctx context.Context, requestID, token string) (bool, error) {
		return false, nil
	}

	err := b.Resolve(context.Background(), &models.ChallengeRequest{RequestID: "chl_5"}, inject)
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
}

func TestBridgeDrainDiscardsStaleRequests(t *testing.T) {
	b := NewBridge(&solverStub{tokens: []string{"0.token"}}, bridgeConfig(), common.GetLogger())

	// Requests captured by a session that died before they were resolved
	b.requests <- &models.ChallengeRequest{RequestID: "chl_stale_1"}
	b.requests <- &models.ChallengeRequest{RequestID: "chl_stale_2"}

	b.drain()

	select {
	case req := <-b.requests:
		t.Fatalf("stale request %s survived drain", req.RequestID)
	default:
	}
}
