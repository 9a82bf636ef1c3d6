package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ClassifySnapshot inspects captured login-page HTML and names the most
// likely failure cause for the log line next to the snapshot files.
func ClassifySnapshot(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "unparseable"
	}

	if msg := strings.TrimSpace(doc.Find(selCredentialError).First().Text()); msg != "" {
		return "credential_error"
	}
	if doc.Find(`iframe[src*="challenges.cloudflare.com"]`).Length() > 0 ||
		doc.Find(`div.cf-turnstile`).Length() > 0 {
		return "challenge_pending"
	}
	if doc.Find(selLoggedInAnchor).Length() > 0 || doc.Find(selLoggedInHome).Length() > 0 {
		return "logged_in"
	}
	if doc.Find(selEmailInput).Length() > 0 {
		return "login_form"
	}
	return "unknown_page"
}

// captureDiagnostics writes a screenshot and HTML snapshot of the failed
// attempt into the diagnostics directory. Best effort, failures here must
// never mask the login error.
func (a *Authenticator) captureDiagnostics(ctx context.Context, drv pageDriver, attempt int, authErr *Error) {
	if a.config.DiagnosticsDir == "" {
		return
	}

	screenshot, html, err := drv.Snapshot(ctx)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Failed to capture failure snapshot")
		return
	}

	if err := os.MkdirAll(a.config.DiagnosticsDir, 0o755); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to create diagnostics directory")
		return
	}

	stamp := time.Now().Format("20060102-150405")
	base := fmt.Sprintf("login-failure-%s-attempt%d", stamp, attempt)
	pngPath := filepath.Join(a.config.DiagnosticsDir, base+".png")
	htmlPath := filepath.Join(a.config.DiagnosticsDir, base+".html")

	if err := os.WriteFile(pngPath, screenshot, 0o644); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to write failure screenshot")
	}
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to write failure HTML snapshot")
	}

	a.logger.Info().
		Str("classification", ClassifySnapshot(html)).
		Str("kind", authErr.Kind.String()).
		Str("screenshot", pngPath).
		Str("html", htmlPath).
		Msg("Login failure snapshot captured")
}
