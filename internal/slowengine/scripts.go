package slowengine

// automationIndicatorCleanupJS deletes the ChromeDriver automation markers
// go-rod/stealth's own payload does not touch, run in addition to it.
const automationIndicatorCleanupJS = `
(() => {
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
	delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
})();
`

// consoleCaptureJS wraps console.{log,warn,error,info,debug} and pushes
// every call onto a window-scoped array for post-navigation collection,
// plus an uncaught-error listener.
const consoleCaptureJS = `
(() => {
	window.__titanConsoleLogs = [];
	const originalConsole = { ...console };

	['log', 'warn', 'error', 'info', 'debug'].forEach(method => {
		console[method] = (...args) => {
			window.__titanConsoleLogs.push({
				type: method,
				timestamp: Date.now(),
				message: args.map(a => typeof a === 'object' ? JSON.stringify(a) : String(a)).join(' ')
			});
			originalConsole[method](...args);
		};
	});

	window.addEventListener('error', (event) => {
		window.__titanConsoleLogs.push({
			type: 'uncaught_error',
			timestamp: Date.now(),
			message: event.message + ' at ' + event.filename + ':' + event.lineno
		});
	});
})();
`

// collectConsoleLogsJS returns the captured log array for page.Eval to
// decode with ysmood/gson.
const collectConsoleLogsJS = `() => window.__titanConsoleLogs || []`

// blockedResourceExtensions are the URL substrings hijacked and aborted at
// the network layer to cut rendering cost.
var blockedResourceExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp",
	".woff", ".woff2", ".ttf", ".mp4", ".webm", ".css",
}
