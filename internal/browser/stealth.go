package browser

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthJS papers over the navigator properties headless Chrome leaks.
// Evaluated on every new document so SPA navigations stay covered.
const stealthJS = `
	// Hide webdriver flag
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined,
		configurable: true
	});

	// Spoof platform to match the advertised user agent
	Object.defineProperty(navigator, 'platform', {
		get: () => 'Linux x86_64',
		configurable: true
	});

	// Headless Chrome ships zero plugins
	Object.defineProperty(navigator, 'plugins', {
		get: () => {
			const plugins = [
				{ name: 'Chrome PDF Plugin' },
				{ name: 'Chrome PDF Viewer' },
				{ name: 'Native Client' }
			];
			plugins.length = 3;
			return plugins;
		},
		configurable: true
	});

	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-US', 'en'],
		configurable: true
	});

	if (!window.chrome) window.chrome = {};
	window.chrome.runtime = { id: undefined };

	// permissions.query reports 'denied' for notifications under automation
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
			Promise.resolve({ state: Notification.permission }) :
			originalQuery(parameters)
	);

	// Fix WebGL vendor/renderer
	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function(parameter) {
		if (parameter === 37445) return 'Intel Inc.';
		if (parameter === 37446) return 'Intel Iris OpenGL Engine';
		return getParameter.call(this, parameter);
	};
`

// InjectStealth registers the stealth script to run before any page script
// on every new document in the tab.
func InjectStealth() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx)
		return err
	})
}
