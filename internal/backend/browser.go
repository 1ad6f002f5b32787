package backend

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// consoleHarness evaluates code with the console redirected into a
// buffer and returns the captured lines.
const consoleHarness = `(code) => {
	const lines = [];
	const format = (args) => args.map((a) => {
		if (typeof a === 'string') return a;
		try { return JSON.stringify(a); } catch (e) { return String(a); }
	}).join(' ');
	for (const level of ['log', 'info', 'warn', 'error', 'debug']) {
		console[level] = (...args) => { lines.push(format(args)); };
	}
	(0, eval)(code);
	return lines.length ? lines.join('\n') + '\n' : '';
}`

// Browser evaluates JavaScript in a headless browser (via rod). Every run
// gets its own blank page, which is closed afterwards or on abort.
type Browser struct {
	browser *rod.Browser
}

// NewBrowser connects to controlURL, or launches a local browser when it
// is empty.
func NewBrowser(controlURL string) (*Browser, error) {
	b := rod.New()
	if controlURL != "" {
		b = b.ControlURL(controlURL)
	}
	if err := b.Connect(); err != nil {
		return nil, err
	}
	return &Browser{browser: b}, nil
}

func (b *Browser) Run(ctx context.Context, code string) (string, error) {
	if ctx.Err() != nil {
		return "", abortedErr(ctx)
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", err
	}
	// The page is closed through its own (uncancelled) context so that an
	// aborted run still tears down the spinning renderer target.
	defer func() { _ = page.Close() }()

	res, err := page.Context(ctx).Eval(consoleHarness, code)
	if ctx.Err() != nil {
		return "", abortedErr(ctx)
	}
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// Close shuts the browser connection down.
func (b *Browser) Close() error {
	return b.browser.Close()
}
