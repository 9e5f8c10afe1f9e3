package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/httpx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
)

// DefaultWaitTimeout bounds the DOM-readiness wait of the browser
// strategy.
const DefaultWaitTimeout = 10 * time.Second

// Browser retrieves a target through a full rendering engine. It is the
// fallback for endpoints whose anti-bot layer rejects plain HTTP: the
// page is loaded headless, the strategy waits for the body element, and
// the rendered document is returned as-is. JSON endpoints come back
// wrapped in a document shell; payload.EmbeddedJSON recovers them
// downstream.
//
// Only GET targets are renderable; the postback panels stay on the direct
// strategy.
type Browser struct {
	WaitTimeout time.Duration
	Logger      zerolog.Logger

	// run is swapped in tests; defaults to a real headless browser.
	run func(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// NewBrowser builds the rendering fallback with defaults.
func NewBrowser() *Browser {
	return &Browser{
		WaitTimeout: DefaultWaitTimeout,
		Logger:      logx.Silent(),
	}
}

func (b *Browser) Name() string { return "browser" }

func (b *Browser) Attempt(ctx context.Context, target Target) ([]byte, error) {
	if target.method() != http.MethodGet {
		return nil, fmt.Errorf("browser strategy: %s targets not renderable", target.method())
	}
	timeout := b.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	run := b.run
	if run == nil {
		run = renderPage
	}
	b.Logger.Debug().Str("url", target.URL).Msg("rendering target in browser")
	html, err := run(ctx, target.URL, timeout)
	if err != nil {
		return nil, fmt.Errorf("browser strategy: %w", err)
	}
	return []byte(html), nil
}

func renderPage(ctx context.Context, url string, timeout time.Duration) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(httpx.DefaultUserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}
