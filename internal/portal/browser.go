package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	appLog "github.com/Alzter/EmpKiller/internal/log"
	"github.com/Alzter/EmpKiller/internal/model"
)

// DefaultBrowserTimeout bounds a single Authenticate or Fetch sequence in
// the browser driver.
const DefaultBrowserTimeout = 60 * time.Second

// BrowserOptions configures the chromedp-backed portal driver.
type BrowserOptions struct {
	// BaseURL is the portal root, e.g. "https://ess.emplive.net/".
	BaseURL string

	// Location is the timezone used to interpret the portal's period
	// labels. If nil, time.Local is used.
	Location *time.Location

	// MaxReloads caps period navigation clicks per Fetch. If zero,
	// DefaultMaxReloads is used.
	MaxReloads int

	// Timeout bounds each Authenticate/Fetch sequence. If zero,
	// DefaultBrowserTimeout is used.
	Timeout time.Duration
}

// BrowserClient drives the portal through a headless Chromium instance.
// It exists for portal variants whose login flow depends on script
// execution that the plain HTTP driver cannot replay. The browser holds
// the session cookies, so the instance is kept alive between calls.
type BrowserClient struct {
	creds   Credentials
	opts    BrowserOptions
	browser context.Context
	release []context.CancelFunc

	mu      sync.Mutex
	session *Session
}

// NewBrowserClient launches a headless Chromium and returns a portal
// client backed by it. Close must be called to release the browser.
func NewBrowserClient(parentCtx context.Context, creds Credentials, opts BrowserOptions) (*BrowserClient, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("portal: base URL is required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxReloads <= 0 {
		opts.MaxReloads = DefaultMaxReloads
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBrowserTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	return &BrowserClient{
		creds:   creds,
		opts:    opts,
		browser: browserCtx,
		release: []context.CancelFunc{cancelBrowser, cancelAlloc},
	}, nil
}

// Close shuts the headless browser down.
func (c *BrowserClient) Close() {
	for _, cancel := range c.release {
		cancel()
	}
}

// Authenticate fills the login form in the browser, submits it and
// navigates to the personal roster page.
func (c *BrowserClient) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	appLog.Info("portal browser login start", "url", c.opts.BaseURL, "username", c.creds.Username)

	runCtx, cancel := c.runContext(ctx)
	defer cancel()

	var errTables int
	err := chromedp.Run(runCtx,
		chromedp.Navigate(c.opts.BaseURL),
		chromedp.WaitVisible(`input[name$='`+fieldUsername+`']`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name$='`+fieldUsername+`']`, c.creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name$='`+fieldPassword+`']`, c.creds.Password, chromedp.ByQuery),
		chromedp.Submit(`input[name$='`+fieldPassword+`']`, chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelectorAll("[id$='`+fieldErrTable+`']").length`, &errTables),
	)
	if err != nil {
		return fmt.Errorf("%w: browser login: %v", ErrNetwork, err)
	}
	if errTables > 0 {
		return fmt.Errorf("%w: portal rejected credentials for %q", ErrAuth, c.creds.Username)
	}

	err = chromedp.Run(runCtx,
		chromedp.Click(`//a[contains(text(), "`+rosterLinkText+`")]`, chromedp.BySearch),
		chromedp.WaitVisible(`span[id$='_lblStartDate']`, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: %q page: %v", ErrAuth, rosterLinkText, err)
	}

	c.session = newSession()
	appLog.Info("portal browser login ok", "username", c.creds.Username)
	return nil
}

// Fetch walks the browser to the requested roster period and returns the
// rendered page HTML.
func (c *BrowserClient) Fetch(ctx context.Context, rng model.DateRange) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Valid() {
		return Page{}, fmt.Errorf("%w: no live session", ErrSessionExpired)
	}

	runCtx, cancel := c.runContext(ctx)
	defer cancel()

	for i := 0; ; i++ {
		doc, raw, err := c.snapshot(runCtx)
		if err != nil {
			if errors.Is(err, ErrSessionExpired) {
				c.session.invalidate()
			}
			return Page{}, err
		}

		shown, perr := periodStart(doc, c.opts.Location)
		if perr != nil {
			return Page{}, perr
		}
		if shown.Equal(rng.Start) {
			return Page{Range: rng, HTML: raw}, nil
		}
		if i >= c.opts.MaxReloads {
			return Page{}, fmt.Errorf("portal: period %s not reached within %d reloads", rng, c.opts.MaxReloads)
		}

		button := fieldBtnFwd
		if shown.After(rng.Start) {
			button = fieldBtnBack
		}
		err = chromedp.Run(runCtx,
			chromedp.Click(`input[name$='`+button+`']`, chromedp.ByQuery),
			chromedp.WaitVisible(`span[id$='_lblStartDate']`, chromedp.ByQuery),
		)
		if err != nil {
			return Page{}, fmt.Errorf("%w: period navigation: %v", ErrNetwork, err)
		}
	}
}

// snapshot captures the current page HTML and classifies it for
// portal-signaled error states.
func (c *BrowserClient) snapshot(runCtx context.Context) (*goquery.Document, []byte, error) {
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, nil, fmt.Errorf("%w: capturing page: %v", ErrNetwork, err)
	}
	raw := []byte(html)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("portal: parsing page: %w", err)
	}
	if cerr := ClassifyPage(doc); cerr != nil {
		return nil, nil, cerr
	}
	return doc, raw, nil
}

func (c *BrowserClient) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	// The browser context carries the session; the caller's ctx and the
	// per-call timeout both bound the operation.
	runCtx, cancel := context.WithTimeout(c.browser, c.opts.Timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
