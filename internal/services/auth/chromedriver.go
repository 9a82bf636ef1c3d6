package auth

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
)

// Login page selectors. The success and error markers are the only reliable
// signals the site gives, everything else is obfuscated.
const (
	selEmailInput      = `input[name="email"]`
	selPasswordInput   = `input[name="password"]`
	selSubmitButton    = `button[type="submit"]`
	selLoggedInAnchor  = `a[href="/my/settings"]`
	selLoggedInHome    = `svg[data-icon-name="icon-home"]`
	selCredentialError = `.b-server-error`
)

// outcomeJS inspects the DOM for the post-login markers in one round trip
const outcomeJS = `(() => {
	if (document.querySelector('` + selLoggedInAnchor + `') || document.querySelector('` + selLoggedInHome + `')) return 'verified';
	const err = document.querySelector('` + selCredentialError + `');
	if (err && err.textContent.trim().length > 0) return 'credentials';
	return 'none';
})()`

// chromeDriver is the production pageDriver backed by a chromedp tab
type chromeDriver struct {
	sess   *browser.Session
	site   common.SiteConfig
	config common.BrowserConfig
}

func newChromeDriver(sess *browser.Session, site common.SiteConfig, config common.BrowserConfig) pageDriver {
	return &chromeDriver{sess: sess, site: site, config: config}
}

func (d *chromeDriver) Navigate(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(d.sess.Tab, d.config.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(d.site.BaseURL),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("failed to open %s: %w", d.site.BaseURL, err)
	}
	return nil
}

func (d *chromeDriver) SubmitLogin(ctx context.Context, username, password string) error {
	stepCtx, cancel := context.WithTimeout(d.sess.Tab, d.config.StepTimeout)
	defer cancel()
	return chromedp.Run(stepCtx,
		chromedp.WaitVisible(selEmailInput),
		chromedp.Clear(selEmailInput),
		chromedp.SendKeys(selEmailInput, username),
		chromedp.Clear(selPasswordInput),
		chromedp.SendKeys(selPasswordInput, password),
		chromedp.Click(selSubmitButton),
	)
}

func (d *chromeDriver) CheckOutcome(ctx context.Context) (Outcome, error) {
	checkCtx, cancel := context.WithTimeout(d.sess.Tab, d.config.StepTimeout)
	defer cancel()

	var marker string
	if err := chromedp.Run(checkCtx, chromedp.Evaluate(outcomeJS, &marker)); err != nil {
		return OutcomeNone, err
	}
	switch marker {
	case "verified":
		return OutcomeVerified, nil
	case "credentials":
		return OutcomeCredentialError, nil
	default:
		return OutcomeNone, nil
	}
}

func (d *chromeDriver) Snapshot(ctx context.Context) ([]byte, string, error) {
	snapCtx, cancel := context.WithTimeout(d.sess.Tab, d.config.StepTimeout)
	defer cancel()

	var screenshot []byte
	var html string
	err := chromedp.Run(snapCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().Do(ctx)
			if err != nil {
				return err
			}
			screenshot = buf
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, "", err
	}
	return screenshot, html, nil
}
