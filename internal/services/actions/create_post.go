package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/models"
)

// submitReadyJS is true once the submit button exists and is enabled. The
// site disables it while media is still processing, which is the only
// reliable processing-complete signal the page exposes.
const submitReadyJS = `(() => {
	const btn = document.querySelector('` + selSubmitPost + `');
	return btn !== null && !btn.disabled;
})()`

// postSubmittedJS is true once the page has left the creation surface
const postSubmittedJS = `window.location.pathname !== '` + postCreatePath + `'`

// CreatePost opens the post-creation page, uploads the media file, waits for
// the site to finish processing it, types the caption and submits. Media is
// optional; a caption-only post is valid.
func (e *Executor) CreatePost(sess *browser.Session, mediaPath, caption string) models.ActionResult {
	if !sess.Alive() {
		return models.Failed("browser session is dead", nil)
	}

	if mediaPath != "" {
		abs, err := filepath.Abs(mediaPath)
		if err != nil {
			return models.Failed("invalid media path", err)
		}
		if _, err := os.Stat(abs); err != nil {
			return models.Failed(fmt.Sprintf("media file not readable: %s", mediaPath), err)
		}
		mediaPath = abs
	}

	e.logger.Info().Str("media", mediaPath).Msg("Creating post")

	if err := e.pace(sess.Tab); err != nil {
		return models.Failed("action pacing interrupted", err)
	}
	if err := e.navigate(sess, e.postCreateURL()); err != nil {
		return e.fail(sess, "create-post", "failed to open post creation page", err)
	}

	if err := e.step(sess,
		chromedp.WaitVisible(selCaptionField),
		chromedp.Click(selCaptionField),
		chromedp.SendKeys(selCaptionField, caption),
	); err != nil {
		return e.fail(sess, "create-post", "caption field not usable", err)
	}

	if mediaPath != "" {
		if err := e.step(sess,
			chromedp.SetUploadFiles(selFileInput, []string{mediaPath}),
		); err != nil {
			return e.fail(sess, "create-post", "media upload failed", err)
		}
		if err := e.awaitProcessing(sess); err != nil {
			return e.fail(sess, "create-post", "media processing did not complete", err)
		}
	}

	if err := e.step(sess,
		chromedp.WaitVisible(selSubmitPost),
		chromedp.Click(selSubmitPost),
	); err != nil {
		return e.fail(sess, "create-post", "submit button not clickable", err)
	}

	// Submission is confirmed by the page leaving the creation surface
	submitCtx, cancel := context.WithTimeout(sess.Tab, e.config.NavigationTimeout)
	if err := chromedp.Run(submitCtx, chromedp.Poll(postSubmittedJS, nil)); err != nil {
		cancel()
		return e.fail(sess, "create-post", "post submission was not confirmed", err)
	}
	cancel()

	e.logger.Info().Msg("Post created")
	return models.OK("post created")
}

// awaitProcessing polls for the submit button becoming enabled, bounded by
// the navigation timeout as the fallback when the signal never arrives.
func (e *Executor) awaitProcessing(sess *browser.Session) error {
	waitCtx, cancel := context.WithTimeout(sess.Tab, e.config.NavigationTimeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.Poll(submitReadyJS, nil))
}
