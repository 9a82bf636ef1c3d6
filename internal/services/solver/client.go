// -----------------------------------------------------------------------
// Solving Service Client - exchanges challenge parameters for a token
// -----------------------------------------------------------------------

package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/models"
)

// Solver exchanges an intercepted challenge for a proof token
type Solver interface {
	Solve(ctx context.Context, req *models.ChallengeRequest) (string, error)
}

// Client talks to a 2Captcha-compatible task API: createTask submits the
// challenge, getTaskResult is polled until the token is ready.
type Client struct {
	config common.SolverConfig
	http   *http.Client
	logger arbor.ILogger
}

// NewClient creates a solving-service client
func NewClient(config common.SolverConfig, logger arbor.ILogger) *Client {
	return &Client{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type createTaskRequest struct {
	ClientKey string   `json:"clientKey"`
	Task      taskSpec `json:"task"`
}

type taskSpec struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
	Action     string `json:"action,omitempty"`
	Data       string `json:"data,omitempty"`
	PageData   string `json:"pagedata,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	TaskID           int64  `json:"taskId,omitempty"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	Status           string `json:"status,omitempty"`
	Solution         struct {
		Token string `json:"token"`
	} `json:"solution"`
}

// Solve submits the challenge and polls for the token, blocking up to the
// configured solve timeout.
func (c *Client) Solve(ctx context.Context, req *models.ChallengeRequest) (string, error) {
	if c.config.APIKey == "" {
		return "", terminalError("solver API key not configured")
	}

	solveCtx, cancel := context.WithTimeout(ctx, c.config.SolveTimeout)
	defer cancel()

	taskID, err := c.createTask(solveCtx, req)
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Int64("task_id", taskID).
		Str("sitekey", req.SiteKey).
		Str("pageurl", req.PageURL).
		Msg("Challenge task submitted to solving service")

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-solveCtx.Done():
			return "", retryableError("solve timed out after %s", c.config.SolveTimeout)
		case <-ticker.C:
			token, ready, err := c.pollResult(solveCtx, taskID)
			if err != nil {
				return "", err
			}
			if ready {
				return token, nil
			}
		}
	}
}

func (c *Client) createTask(ctx context.Context, req *models.ChallengeRequest) (int64, error) {
	body := createTaskRequest{
		ClientKey: c.config.APIKey,
		Task: taskSpec{
			Type:       "TurnstileTaskProxyless",
			WebsiteURL: req.PageURL,
			WebsiteKey: req.SiteKey,
			Action:     req.Action,
			Data:       req.Data,
			PageData:   req.PageData,
			UserAgent:  req.UserAgent,
		},
	}

	var resp createTaskResponse
	if err := c.post(ctx, "/createTask", body, &resp); err != nil {
		return 0, err
	}

	if resp.ErrorID != 0 {
		return 0, serviceError(resp.ErrorCode, resp.ErrorDescription)
	}
	return resp.TaskID, nil
}

// pollResult returns (token, ready, error). A "processing" status is not an
// error, just not ready yet.
func (c *Client) pollResult(ctx context.Context, taskID int64) (string, bool, error) {
	var resp taskResultResponse
	if err := c.post(ctx, "/getTaskResult", taskResultRequest{ClientKey: c.config.APIKey, TaskID: taskID}, &resp); err != nil {
		return "", false, err
	}

	if resp.ErrorID != 0 {
		return "", false, serviceError(resp.ErrorCode, resp.ErrorDescription)
	}
	if resp.Status != "ready" {
		return "", false, nil
	}
	if resp.Solution.Token == "" {
		return "", false, retryableError("solving service reported ready with empty token")
	}
	return resp.Solution.Token, true, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal solver request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return retryableError("failed to build solver request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return retryableError("solver request failed: %v", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return retryableError("solving service returned HTTP %d", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		return terminalError("solving service returned HTTP %d", httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return retryableError("failed to decode solver response: %v", err)
	}
	return nil
}
