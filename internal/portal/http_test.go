package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Alzter/EmpKiller/internal/model"
)

// fakePortal is an httptest stand-in for the EmpLive site: a WebForms-style
// login page, cookie sessions, and a roster page navigated one period at a
// time via postback buttons.
type fakePortal struct {
	username string
	password string

	mu          sync.Mutex
	sessions    map[string]bool
	nextSession int
	periodStart time.Time
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		username:    "user@domain",
		password:    "hunter2",
		sessions:    map[string]bool{},
		periodStart: time.Date(2025, time.February, 17, 0, 0, 0, 0, time.Local),
	}
}

// expireSessions invalidates all live sessions, simulating the ASP.NET
// idle timeout.
func (p *fakePortal) expireSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = map[string]bool{}
}

func (p *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleLogin)
	mux.HandleFunc("/roster", p.handleRoster)
	return mux
}

func (p *fakePortal) loggedIn(r *http.Request) bool {
	c, err := r.Cookie("ASPSESSION")
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[c.Value]
}

func (p *fakePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fmt.Fprint(w, `<html><head><title>EmpLive ESS</title></head><body>
<form action="/" method="post">
<input type="hidden" name="__VIEWSTATE" value="vs-1"/>
<input type="text" name="ctl00$_txtUsername"/>
<input type="password" name="ctl00$_txtPassword"/>
<input type="submit" name="ctl00$_btnLogin" value="Log In"/>
</form></body></html>`)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("__VIEWSTATE") == "" {
		http.Error(w, "missing viewstate", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("ctl00$_txtUsername") != p.username || r.PostForm.Get("ctl00$_txtPassword") != p.password {
		fmt.Fprint(w, `<html><head><title>EmpLive ESS</title></head><body>
<table id="ctl00__tblErrorTable"><tr><td>Invalid credentials</td></tr></table>
</body></html>`)
		return
	}

	p.mu.Lock()
	p.nextSession++
	id := fmt.Sprintf("sess-%d", p.nextSession)
	p.sessions[id] = true
	p.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "ASPSESSION", Value: id, Path: "/"})
	fmt.Fprint(w, `<html><head><title>Employee Self Service</title></head><body>
<a href="/roster">Personal Roster</a>
</body></html>`)
}

func (p *fakePortal) handleRoster(w http.ResponseWriter, r *http.Request) {
	if !p.loggedIn(r) {
		fmt.Fprint(w, `<html><head><title>Session Timed Out</title></head><body></body></html>`)
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		for key := range r.PostForm {
			if strings.HasSuffix(key, "_btnForward") {
				p.periodStart = p.periodStart.AddDate(0, 0, 7)
			}
			if strings.HasSuffix(key, "_btnBack") {
				p.periodStart = p.periodStart.AddDate(0, 0, -7)
			}
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	start := p.periodStart
	p.mu.Unlock()
	end := start.AddDate(0, 0, 6)

	fmt.Fprintf(w, `<html><head><title>Employee Self Service</title></head><body>
<span id="_content_ctl09__filtersPersonal__lblStartDate">%s</span>
<span id="_content_ctl09__filtersPersonal__lblEndDate">%s</span>
<form action="/roster" method="post">
<input type="hidden" name="__VIEWSTATE" value="vs-2"/>
<input type="submit" name="ctl00$_btnForward" value="Next"/>
<input type="submit" name="ctl00$_btnBack" value="Prev"/>
</form>
<table id="_content_ctl09_gridPersonalRoster"><tr><th>Date</th></tr></table>
</body></html>`, start.Format("02 Jan 2006"), end.Format("02 Jan 2006"))
}

func newTestClient(t *testing.T, ts *httptest.Server, maxReloads int) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(Credentials{Username: "user@domain", Password: "hunter2"}, HTTPOptions{
		BaseURL:    ts.URL + "/",
		Location:   time.Local,
		MaxReloads: maxReloads,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	return c
}

func rangeFrom(start time.Time) model.DateRange {
	return model.DateRange{Start: start, End: start.AddDate(0, 0, 6)}
}

func TestAuthenticateAndFetchCurrentWeek(t *testing.T) {
	p := newFakePortal()
	ts := httptest.NewServer(p.handler())
	defer ts.Close()

	c := newTestClient(t, ts, 10)
	ctx := context.Background()

	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	page, err := c.Fetch(ctx, rangeFrom(time.Date(2025, time.February, 17, 0, 0, 0, 0, time.Local)))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(string(page.HTML), "gridPersonalRoster") {
		t.Error("fetched page does not contain the roster grid")
	}
}

func TestFetchNavigatesToRequestedWeek(t *testing.T) {
	p := newFakePortal()
	ts := httptest.NewServer(p.handler())
	defer ts.Close()

	c := newTestClient(t, ts, 10)
	ctx := context.Background()

	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// Two weeks ahead, then one week back: exercises both buttons.
	for _, start := range []time.Time{
		time.Date(2025, time.March, 3, 0, 0, 0, 0, time.Local),
		time.Date(2025, time.February, 24, 0, 0, 0, 0, time.Local),
	} {
		page, err := c.Fetch(ctx, rangeFrom(start))
		if err != nil {
			t.Fatalf("Fetch(%s) failed: %v", start.Format("2006-01-02"), err)
		}
		if want := start.Format("02 Jan 2006"); !strings.Contains(string(page.HTML), want) {
			t.Errorf("fetched page shows the wrong period, want %s", want)
		}
	}
}

func TestAuthenticateBadCredentials(t *testing.T) {
	p := newFakePortal()
	ts := httptest.NewServer(p.handler())
	defer ts.Close()

	c, err := NewHTTPClient(Credentials{Username: "user@domain", Password: "wrong"}, HTTPOptions{
		BaseURL:  ts.URL + "/",
		Location: time.Local,
	})
	if err != nil {
		t.Fatal(err)
	}

	err = c.Authenticate(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestFetchWithoutSession(t *testing.T) {
	p := newFakePortal()
	ts := httptest.NewServer(p.handler())
	defer ts.Close()

	c := newTestClient(t, ts, 10)

	_, err := c.Fetch(context.Background(), rangeFrom(p.periodStart))
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestFetchAfterServerExpiry(t *testing.T) {
	p := newFakePortal()
	ts := httptest.NewServer(p.handler())
	defer ts.Close()

	c := newTestClient(t, ts, 10)
	ctx := context.Background()
	rng := rangeFrom(time.Date(2025, time.February, 17, 0, 0, 0, 0, time.Local))

	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	p.expireSessions()

	_, err := c.Fetch(ctx, rng)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after server expiry, got %v", err)
	}

	// Re-authenticating restores service, as the repository's retry does.
	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("re-Authenticate failed: %v", err)
	}
	if _, err := c.Fetch(ctx, rng); err != nil {
		t.Fatalf("Fetch after re-auth failed: %v", err)
	}
}

func TestFetchMaxReloadsExceeded(t *testing.T) {
	p := newFakePortal()
	ts := httptest.NewServer(p.handler())
	defer ts.Close()

	c := newTestClient(t, ts, 2)
	ctx := context.Background()

	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	far := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.Local)
	_, err := c.Fetch(ctx, rangeFrom(far))
	if err == nil || !strings.Contains(err.Error(), "reloads") {
		t.Fatalf("expected reload-limit error, got %v", err)
	}
}
