// -----------------------------------------------------------------------
// Action Executor - performs single UI actions on a verified session
// -----------------------------------------------------------------------

package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/models"
)

// Executor performs one concrete UI action against an authenticated session
// and folds every failure into an ActionResult. It never logs in; a dead or
// unauthenticated session surfaces as a failed result for the runner to
// classify.
type Executor struct {
	site    common.SiteConfig
	config  common.BrowserConfig
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewExecutor creates an action executor. Navigations are paced by the
// configured action rate so bursts of jobs do not hammer the site.
func NewExecutor(site common.SiteConfig, config common.BrowserConfig, logger arbor.ILogger) *Executor {
	actionRate := config.ActionRate
	if actionRate <= 0 {
		actionRate = 2 * time.Second
	}
	return &Executor{
		site:    site,
		config:  config,
		limiter: rate.NewLimiter(rate.Every(actionRate), 1),
		logger:  logger,
	}
}

// chatURL builds the direct-message page address for a target user
func (e *Executor) chatURL(targetUserID string) string {
	base := strings.TrimSuffix(e.site.ChatURLBase, "/")
	return fmt.Sprintf("%s/%s/", base, targetUserID)
}

// postCreateURL builds the new-post page address
func (e *Executor) postCreateURL() string {
	return strings.TrimSuffix(e.site.BaseURL, "/") + postCreatePath
}

// pace blocks until the rate limiter admits the next site navigation
func (e *Executor) pace(ctx context.Context) error {
	return e.limiter.Wait(ctx)
}

// navigate opens a page on the session tab under the navigation timeout
func (e *Executor) navigate(sess *browser.Session, url string) error {
	navCtx, cancel := context.WithTimeout(sess.Tab, e.config.NavigationTimeout)
	defer cancel()
	return chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
}

// step runs UI actions under the per-step timeout
func (e *Executor) step(sess *browser.Session, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(sess.Tab, e.config.StepTimeout)
	defer cancel()
	return chromedp.Run(stepCtx, actions...)
}

// failureSnapshot saves a screenshot of the current page next to the login
// diagnostics. Best effort.
func (e *Executor) failureSnapshot(sess *browser.Session, label string) {
	if e.config.DiagnosticsDir == "" || !sess.Alive() {
		return
	}

	snapCtx, cancel := context.WithTimeout(sess.Tab, e.config.StepTimeout)
	defer cancel()

	var screenshot []byte
	err := chromedp.Run(snapCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, err := page.CaptureScreenshot().Do(ctx)
		if err != nil {
			return err
		}
		screenshot = buf
		return nil
	}))
	if err != nil {
		e.logger.Debug().Err(err).Msg("Failed to capture action failure screenshot")
		return
	}

	if err := os.MkdirAll(e.config.DiagnosticsDir, 0o755); err != nil {
		return
	}
	name := fmt.Sprintf("%s-%s.png", label, time.Now().Format("20060102-150405"))
	path := filepath.Join(e.config.DiagnosticsDir, name)
	if err := os.WriteFile(path, screenshot, 0o644); err != nil {
		e.logger.Debug().Err(err).Msg("Failed to write action failure screenshot")
		return
	}
	e.logger.Info().Str("screenshot", path).Msg("Action failure screenshot captured")
}

// fail logs, snapshots and folds an error into a failed result
func (e *Executor) fail(sess *browser.Session, label, details string, err error) models.ActionResult {
	e.logger.Warn().Err(err).Str("action", label).Msg(details)
	e.failureSnapshot(sess, label)
	return models.Failed(details, err)
}
