package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/common"
)

// Launcher creates Chrome instances configured to look like a normal
// interactive browser. The target site fingerprints automation aggressively,
// so the flag set and the new-document stealth script both matter.
type Launcher struct {
	config common.BrowserConfig
	logger arbor.ILogger
}

// NewLauncher creates a browser launcher
func NewLauncher(config common.BrowserConfig, logger arbor.ILogger) *Launcher {
	return &Launcher{
		config: config,
		logger: logger,
	}
}

// Launch starts a browser, opens one tab and verifies it responds.
// The returned session owns all three contexts.
func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	startTime := time.Now()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.buildAllocatorOptions()...)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			l.logger.Debug().Msgf("chromedp: "+format, args...)
		}),
	)

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)

	session := &Session{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		Browser:       browserCtx,
		browserCancel: browserCancel,
		Tab:           tabCtx,
		tabCancel:     tabCancel,
	}

	// Startup probe: a browser that cannot reach about:blank is unusable
	probeCtx, probeCancel := context.WithTimeout(tabCtx, 30*time.Second)
	defer probeCancel()

	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		session.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	if err := chromedp.Run(probeCtx, InjectStealth()); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to install stealth instrumentation: %w", err)
	}

	l.logger.Info().
		Bool("headless", l.config.Headless).
		Str("user_agent", l.config.UserAgent).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser launched")

	return session, nil
}

// buildAllocatorOptions assembles Chrome flags that suppress the usual
// automation tells while keeping rendering behavior realistic.
func (l *Launcher) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(l.config.UserAgent),

		// Anti-detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),

		// Container friendliness
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),

		// Keep canvas/WebGL fingerprints realistic
		chromedp.Flag("disable-reading-from-canvas", false),
		chromedp.Flag("enable-webgl", true),
		chromedp.Flag("disable-gpu", false),

		chromedp.WindowSize(1920, 1080),
	}

	if l.config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(l.config.UserDataDir))
	}

	if l.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}

	return opts
}
