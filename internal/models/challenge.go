package models

// ChallengeRequest carries the parameters captured from an intercepted
// in-page challenge widget. It is produced by the page instrumentation,
// consumed exactly once by the solver bridge, and never persisted.
type ChallengeRequest struct {
	RequestID string `json:"request_id"` // Correlates the solve with the stored page callback
	SiteKey   string `json:"sitekey"`
	PageURL   string `json:"pageurl"`
	Action    string `json:"action,omitempty"`
	Data      string `json:"data,omitempty"`     // Per-session challenge payload (cData)
	PageData  string `json:"pagedata,omitempty"` // Challenge page data (chlPageData)
	UserAgent string `json:"user_agent,omitempty"`
}

// ActionResult is the typed outcome of one executor operation. Executors
// never let errors escape their boundary; everything is folded into this.
type ActionResult struct {
	Success bool
	Details string
	Err     string
}

// OK builds a successful action result
func OK(details string) ActionResult {
	return ActionResult{Success: true, Details: details}
}

// Failed builds a failed action result from an error
func Failed(details string, err error) ActionResult {
	r := ActionResult{Success: false, Details: details}
	if err != nil {
		r.Err = err.Error()
	}
	return r
}
