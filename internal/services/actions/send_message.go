package actions

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/models"
)

// SendMessage opens the target user's chat, types the message into the
// composer and clicks send. Success is verified by the composer clearing.
func (e *Executor) SendMessage(sess *browser.Session, targetUserID, text string) models.ActionResult {
	if !sess.Alive() {
		return models.Failed("browser session is dead", nil)
	}
	if strings.TrimSpace(text) == "" {
		return models.Failed("refusing to send an empty message", nil)
	}

	url := e.chatURL(targetUserID)
	e.logger.Info().Str("target_user_id", targetUserID).Str("url", url).Msg("Sending direct message")

	if err := e.pace(sess.Tab); err != nil {
		return models.Failed("action pacing interrupted", err)
	}
	if err := e.navigate(sess, url); err != nil {
		return e.fail(sess, "send-message", "failed to open chat page", err)
	}

	if err := e.step(sess,
		chromedp.WaitVisible(selMessageComposer),
		chromedp.Click(selMessageComposer),
		chromedp.SendKeys(selMessageComposer, text),
	); err != nil {
		return e.fail(sess, "send-message", "message composer not usable", err)
	}

	if err := e.step(sess,
		chromedp.WaitVisible(selSendButton),
		chromedp.Click(selSendButton),
	); err != nil {
		return e.fail(sess, "send-message", "send button not clickable", err)
	}

	// The composer empties once the site accepts the message
	if err := e.step(sess,
		chromedp.Poll(
			fmt.Sprintf(`document.querySelector('%s') === null || document.querySelector('%s').textContent.trim() === ''`,
				selMessageComposer, selMessageComposer),
			nil,
		),
	); err != nil {
		return e.fail(sess, "send-message", "message send was not confirmed", err)
	}

	e.logger.Info().Str("target_user_id", targetUserID).Msg("Direct message sent")
	return models.OK(fmt.Sprintf("message sent to user %s", targetUserID))
}
