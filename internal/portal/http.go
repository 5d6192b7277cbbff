package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	appLog "github.com/Alzter/EmpKiller/internal/log"
	"github.com/Alzter/EmpKiller/internal/model"
)

// Form field suffixes on the EmpLive pages. The site is ASP.NET WebForms,
// so control names carry generated container prefixes; matching on the
// suffix is stable across portal releases.
const (
	fieldUsername  = "_txtUsername"
	fieldPassword  = "_txtPassword"
	fieldErrTable  = "_tblErrorTable"
	fieldBtnFwd    = "_btnForward"
	fieldBtnBack   = "_btnBack"
	rosterLinkText = "Personal Roster"
)

// DefaultMaxReloads bounds how many period postbacks a single Fetch may
// issue while walking to the requested week.
const DefaultMaxReloads = 10

// HTTPOptions configures the plain-HTTP portal driver.
type HTTPOptions struct {
	// BaseURL is the portal root, e.g. "https://ess.emplive.net/".
	BaseURL string

	// Location is the timezone used to interpret the portal's period
	// labels. If nil, time.Local is used.
	Location *time.Location

	// MaxReloads caps period navigation postbacks per Fetch. If zero,
	// DefaultMaxReloads is used.
	MaxReloads int

	// Timeout bounds each individual HTTP request. If zero, 30s is used.
	Timeout time.Duration
}

// HTTPClient drives the portal over plain HTTP: it replays the login form
// and the week-navigation postbacks while retaining the ASP.NET session
// cookie in a jar. It holds at most one live session; all calls are
// serialized because the server-side session is a single mutable resource.
type HTTPClient struct {
	base       *url.URL
	creds      Credentials
	httpc      *http.Client
	loc        *time.Location
	maxReloads int

	mu        sync.Mutex
	session   *Session
	rosterURL *url.URL
}

// NewHTTPClient constructs the HTTP portal driver. Credentials are held
// for the client's lifetime and used only inside Authenticate.
func NewHTTPClient(creds Credentials, opts HTTPOptions) (*HTTPClient, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("portal: base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("portal: bad base URL: %w", err)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxReloads <= 0 {
		opts.MaxReloads = DefaultMaxReloads
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &HTTPClient{
		base:  base,
		creds: creds,
		httpc: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
		},
		loc:        opts.Location,
		maxReloads: opts.MaxReloads,
	}, nil
}

// Authenticate performs the login handshake: load the login form, submit
// the credentials with the page's hidden postback state, check for the
// login error table, then follow the personal roster link. On success the
// client holds a fresh session.
func (c *HTTPClient) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *HTTPClient) authenticateLocked(ctx context.Context) error {
	appLog.Info("portal login start", "url", c.base.String(), "username", c.creds.Username)

	loginDoc, _, err := c.get(ctx, c.base)
	if err != nil {
		return err
	}

	form := hiddenFields(loginDoc)
	userField, ok := fieldName(loginDoc, fieldUsername)
	if !ok {
		return fmt.Errorf("%w: login form has no username field", ErrAuth)
	}
	passField, ok := fieldName(loginDoc, fieldPassword)
	if !ok {
		return fmt.Errorf("%w: login form has no password field", ErrAuth)
	}
	form.Set(userField, c.creds.Username)
	form.Set(passField, c.creds.Password)

	action := formAction(loginDoc, c.base)
	homeDoc, _, err := c.post(ctx, action, form)
	if err != nil {
		return err
	}

	// The error table only appears when the login was rejected.
	if homeDoc.Find(`[id$='` + fieldErrTable + `']`).Length() > 0 {
		return fmt.Errorf("%w: portal rejected credentials for %q", ErrAuth, c.creds.Username)
	}

	rosterURL, ok := linkHref(homeDoc, rosterLinkText, action)
	if !ok {
		return fmt.Errorf("%w: %q link not found after login", ErrAuth, rosterLinkText)
	}
	if _, _, err := c.get(ctx, rosterURL); err != nil {
		return err
	}

	c.rosterURL = rosterURL
	c.session = newSession()
	appLog.Info("portal login ok", "username", c.creds.Username)
	return nil
}

// Fetch navigates the portal to the roster period starting at rng.Start
// and returns the resulting page. The portal shows one period at a time,
// so navigation walks week by week via the forward/back postback buttons,
// bounded by MaxReloads.
func (c *HTTPClient) Fetch(ctx context.Context, rng model.DateRange) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Valid() || c.rosterURL == nil {
		return Page{}, fmt.Errorf("%w: no live session", ErrSessionExpired)
	}

	doc, raw, err := c.get(ctx, c.rosterURL)
	if err != nil {
		return Page{}, c.noteSessionError(err)
	}

	for i := 0; ; i++ {
		shown, perr := periodStart(doc, c.loc)
		if perr != nil {
			return Page{}, perr
		}
		if shown.Equal(rng.Start) {
			break
		}
		if i >= c.maxReloads {
			return Page{}, fmt.Errorf("portal: period %s not reached within %d reloads", rng, c.maxReloads)
		}

		button := fieldBtnFwd
		if shown.After(rng.Start) {
			button = fieldBtnBack
		}
		appLog.Debug("portal period step", "shown", shown.Format("2006-01-02"), "want", rng.Start.Format("2006-01-02"), "button", button)

		doc, raw, err = c.postback(ctx, doc, button)
		if err != nil {
			return Page{}, c.noteSessionError(err)
		}
	}

	return Page{Range: rng, HTML: raw}, nil
}

// noteSessionError invalidates the held session when the portal reports a
// timeout, so the next Fetch fails fast until Authenticate runs again.
func (c *HTTPClient) noteSessionError(err error) error {
	if errors.Is(err, ErrSessionExpired) {
		c.session.invalidate()
	}
	return err
}

// postback re-submits the current page's hidden form state plus the named
// button, the WebForms equivalent of clicking it.
func (c *HTTPClient) postback(ctx context.Context, doc *goquery.Document, buttonSuffix string) (*goquery.Document, []byte, error) {
	form := hiddenFields(doc)
	name, ok := fieldName(doc, buttonSuffix)
	if !ok {
		return nil, nil, fmt.Errorf("portal: postback button %q not found", buttonSuffix)
	}
	val := doc.Find(`[name$='` + buttonSuffix + `']`).First().AttrOr("value", "")
	form.Set(name, val)

	return c.post(ctx, formAction(doc, c.rosterURL), form)
}

func (c *HTTPClient) get(ctx context.Context, u *url.URL) (*goquery.Document, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	return c.do(req)
}

func (c *HTTPClient) post(ctx context.Context, u *url.URL, form url.Values) (*goquery.Document, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// do executes the request, wraps transport failures as ErrNetwork, and
// classifies the resulting document for portal-signaled error states.
func (c *HTTPClient) do(req *http.Request) (*goquery.Document, []byte, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}
	if resp.StatusCode >= 500 {
		return nil, nil, fmt.Errorf("%w: portal returned %s", ErrNetwork, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("portal: parsing response: %w", err)
	}
	if cerr := ClassifyPage(doc); cerr != nil {
		return nil, nil, cerr
	}
	return doc, raw, nil
}

// hiddenFields collects the page's hidden inputs (__VIEWSTATE and
// friends), which must be echoed back on every postback.
func hiddenFields(doc *goquery.Document) url.Values {
	form := url.Values{}
	doc.Find(`input[type='hidden']`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		form.Set(name, s.AttrOr("value", ""))
	})
	return form
}

// fieldName resolves the full generated name of a control from its suffix.
func fieldName(doc *goquery.Document, suffix string) (string, bool) {
	sel := doc.Find(`[name$='` + suffix + `']`).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Attr("name")
}

// linkHref finds an anchor whose text contains the given label and
// resolves its href against base.
func linkHref(doc *goquery.Document, label string, base *url.URL) (*url.URL, bool) {
	var href string
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.TrimSpace(s.Text()), label) {
			href = s.AttrOr("href", "")
			return false
		}
		return true
	})
	if href == "" {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	return base.ResolveReference(ref), true
}

// formAction resolves the page's form action against the page URL,
// falling back to the page URL itself when the action is empty.
func formAction(doc *goquery.Document, pageURL *url.URL) *url.URL {
	action := doc.Find("form").First().AttrOr("action", "")
	if action == "" {
		return pageURL
	}
	ref, err := url.Parse(action)
	if err != nil {
		return pageURL
	}
	return pageURL.ResolveReference(ref)
}
