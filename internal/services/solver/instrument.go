package solver

import (
	"context"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// BindingName is the CDP binding the instrumented page calls to hand the
// captured challenge parameters to the host process. A binding is a typed
// channel between page and host, which replaces matching marker strings in
// console output.
const BindingName = "__fanflowChallenge"

// interceptJS is installed on every new document. It waits for the site's
// challenge widget to load, replaces its render entry point, captures the
// parameters the site would have passed to the widget, parks the site's
// verification callback under a request-scoped key, and relays the
// parameters to the host through the CDP binding.
//
// The challenge shape is controlled by the target site and changes without
// notice; this script is the single place that needs updating when it does.
const interceptJS = `
	(() => {
		// Some challenge pages clear the console to hide instrumentation
		console.clear = () => {};

		window.__ffChallengeCallbacks = window.__ffChallengeCallbacks || {};

		const poll = setInterval(() => {
			if (!window.turnstile || !window.turnstile.render) return;
			clearInterval(poll);

			window.turnstile.render = (el, opts) => {
				const requestId = 'chl_' + Math.random().toString(36).slice(2) + Date.now().toString(36);
				window.__ffChallengeCallbacks[requestId] = opts.callback;

				window.` + BindingName + `(JSON.stringify({
					request_id: requestId,
					sitekey: opts.sitekey,
					pageurl: window.location.href,
					data: opts.cData,
					pagedata: opts.chlPageData,
					action: opts.action,
					user_agent: navigator.userAgent
				}));

				// The native widget never renders; the host delivers the
				// token straight to the parked callback.
				return requestId;
			};
		}, 50);
	})();
`

// InstallInstrumentation registers the interception script for every new
// document in the tab. The CDP binding itself is registered separately by
// the bridge because it needs the event listener wired first.
func InstallInstrumentation() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(interceptJS).Do(ctx)
		return err
	})
}
