// Package portal implements the authenticated session protocol against the
// EmpLive employee self-service site. Two drivers are provided: a plain
// HTTP client that replays the site's form postbacks (the default) and a
// chromedp-backed driver for deployments where the login flow requires
// script execution.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Alzter/EmpKiller/internal/model"
)

// Error kinds surfaced by a Client. Callers distinguish them with
// errors.Is; the concrete message carries portal-specific detail.
var (
	// ErrAuth means the portal rejected the credentials outright. Fatal,
	// never retried.
	ErrAuth = errors.New("portal: authentication rejected")

	// ErrSessionExpired means the server-side session lapsed. The roster
	// repository re-authenticates exactly once and retries the fetch.
	ErrSessionExpired = errors.New("portal: session expired")

	// ErrNetwork wraps transport-level failures (timeouts, refused
	// connections). Surfaced to the caller without automatic retry.
	ErrNetwork = errors.New("portal: network failure")
)

// Credentials hold the ESS login pair. They are given to a Client at
// construction and never logged or persisted by it.
type Credentials struct {
	Username string
	Password string
}

// Session is the client's view of one server-side login. The portal runs
// classic ASP.NET sessions, so the expiry is an estimate: the server may
// drop the session earlier, which surfaces as ErrSessionExpired on fetch.
type Session struct {
	EstablishedAt time.Time
	ExpiresAt     time.Time
	valid         bool
}

// Valid reports whether the session is believed to be live.
func (s *Session) Valid() bool {
	if s == nil || !s.valid {
		return false
	}
	return time.Now().Before(s.ExpiresAt)
}

func (s *Session) invalidate() {
	if s != nil {
		s.valid = false
	}
}

// sessionTTL is a conservative estimate of the portal's idle timeout.
const sessionTTL = 15 * time.Minute

func newSession() *Session {
	now := time.Now()
	return &Session{EstablishedAt: now, ExpiresAt: now.Add(sessionTTL), valid: true}
}

// Page is the raw payload for one roster period: the HTML of the personal
// roster page after navigating to the requested range.
type Page struct {
	Range model.DateRange
	HTML  []byte
}

// Client is the authenticated roster-portal connection. Implementations
// hold at most one live session; Fetch reuses it and fails with
// ErrSessionExpired once the server drops it.
type Client interface {
	Authenticate(ctx context.Context) error
	Fetch(ctx context.Context, rng model.DateRange) (Page, error)
}

// ClassifyPage inspects a scraped page for the portal's error states,
// which EmpLive signals through the page title rather than HTTP status
// codes. A nil return means the page is a normal content page.
func ClassifyPage(doc *goquery.Document) error {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	switch {
	case strings.Contains(title, "Session Timed Out"):
		return fmt.Errorf("%w: portal reported %q", ErrSessionExpired, title)
	case strings.Contains(title, "Access Denied"):
		return fmt.Errorf("%w: portal reported %q", ErrAuth, title)
	case strings.Contains(title, "Error"):
		return fmt.Errorf("%w: portal error page %q", ErrNetwork, title)
	}
	return nil
}

// periodLayout is the format of the roster period labels on the page,
// e.g. "17 Feb 2025".
const periodLayout = "02 Jan 2006"

// periodStart extracts the first day of the roster period currently shown
// on the page.
func periodStart(doc *goquery.Document, loc *time.Location) (time.Time, error) {
	sel := doc.Find(`span[id$='_lblStartDate']`).First()
	if sel.Length() == 0 {
		return time.Time{}, errors.New("portal: period start label not found")
	}
	txt := strings.TrimSpace(sel.Text())
	t, err := time.ParseInLocation(periodLayout, txt, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("portal: bad period label %q: %w", txt, err)
	}
	return t, nil
}
