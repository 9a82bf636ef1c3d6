package solver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/models"
)

func testChallenge() *models.ChallengeRequest {
	return &models.ChallengeRequest{
		RequestID: "chl_test",
		SiteKey:   "0x4AAAAAAA",
		PageURL:   "https://onlyfans.com/",
		Action:    "login",
		UserAgent: "Mozilla/5.0",
	}
}

func solverConfig(baseURL string) common.SolverConfig {
	return common.SolverConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		SolveTimeout: 5 * time.Second,
		PollInterval: 10 * time.Millisecond,
		MaxAttempts:  3,
		RetryDelay:   10 * time.Millisecond,
	}
}

func TestClientSolveReturnsToken(t *testing.T) {
	var polls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/createTask":
			var req createTaskRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-key", req.ClientKey)
			assert.Equal(t, "TurnstileTaskProxyless", req.Task.Type)
			assert.Equal(t, "https://onlyfans.com/", req.Task.WebsiteURL)
			assert.Equal(t, "0x4AAAAAAA", req.Task.WebsiteKey)
			json.NewEncoder(w).Encode(createTaskResponse{TaskID: 42})
		case "/getTaskResult":
			if atomic.AddInt32(&polls, 1) < 3 {
				json.NewEncoder(w).Encode(taskResultResponse{Status: "processing"})
				return
			}
			resp := taskResultResponse{Status: "ready"}
			resp.Solution.Token = "0.solved-token"
			json.NewEncoder(w).Encode(resp)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(solverConfig(server.URL), common.GetLogger())
	token, err := client.Solve(context.Background(), testChallenge())
	require.NoError(t, err)
	assert.Equal(t, "0.solved-token", token)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))
}

func TestClientSolveTerminalCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createTaskResponse{
			ErrorID:   1,
			ErrorCode: "ERROR_KEY_DOES_NOT_EXIST",
		})
	}))
	defer server.Close()

	client := NewClient(solverConfig(server.URL), common.GetLogger())
	_, err := client.Solve(context.Background(), testChallenge())
	require.Error(t, err)
	assert.True(t, IsTerminal(err), "invalid api key must not be retried")
}

func TestClientSolveUnsolvableDuringPolling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/createTask":
			json.NewEncoder(w).Encode(createTaskResponse{TaskID: 7})
		case "/getTaskResult":
			json.NewEncoder(w).Encode(taskResultResponse{
				ErrorID:   1,
				ErrorCode: "ERROR_CAPTCHA_UNSOLVABLE",
			})
		}
	}))
	defer server.Close()

	client := NewClient(solverConfig(server.URL), common.GetLogger())
	_, err := client.Solve(context.Background(), testChallenge())
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
}

func TestClientSolveServerErrorRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(solverConfig(server.URL), common.GetLogger())
	_, err := client.Solve(context.Background(), testChallenge())
	require.Error(t, err)
	assert.False(t, IsTerminal(err), "solver outage should be retryable")
}

func TestClientSolveTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/createTask":
			json.NewEncoder(w).Encode(createTaskResponse{TaskID: 9})
		case "/getTaskResult":
			json.NewEncoder(w).Encode(taskResultResponse{Status: "processing"})
		}
	}))
	defer server.Close()

	config := solverConfig(server.URL)
	config.SolveTimeout = 50 * time.Millisecond
	client := NewClient(config, common.GetLogger())
	_, err := client.Solve(context.Background(), testChallenge())
	require.Error(t, err)
	assert.False(t, IsTerminal(err), "a timed out solve can be retried")
}
