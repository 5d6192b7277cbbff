package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "github.com/Alzter/EmpKiller/internal/log"
	"github.com/Alzter/EmpKiller/internal/model"
	"github.com/Alzter/EmpKiller/internal/portal"
	"github.com/Alzter/EmpKiller/internal/week"
)

// Repository is the public entry point for roster retrieval. It resolves
// the requested week, fetches the raw page through the portal client and
// parses it. It is the only component allowed to trigger the
// re-authentication retry.
type Repository struct {
	client    portal.Client
	parser    *Parser
	weekStart time.Weekday

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewRepository wires a repository over the given portal client.
func NewRepository(client portal.Client, parser *Parser, weekStart time.Weekday) *Repository {
	return &Repository{
		client:    client,
		parser:    parser,
		weekStart: weekStart,
		now:       time.Now,
	}
}

// GetRoster returns the roster for the week that is offset weeks away from
// the current one. An expired session is re-authenticated exactly once; a
// second expiry is treated as an authentication failure and surfaced.
func (r *Repository) GetRoster(ctx context.Context, offset int) (model.Roster, error) {
	rng := week.Resolve(offset, r.now(), r.weekStart)
	appLog.Debug("roster fetch", "offset", offset, "range", rng)

	page, err := r.fetchWithReauth(ctx, rng)
	if err != nil {
		return model.Roster{}, fmt.Errorf("fetch: %w", err)
	}

	// Row-level warnings are logged by the parser and do not fail the fetch.
	roster, _, err := r.parser.Parse(page)
	if err != nil {
		return model.Roster{}, fmt.Errorf("parse: %w", err)
	}
	return roster, nil
}

// fetchWithReauth implements the single-retry policy: one transparent
// re-authentication when the session has expired, then escalation.
func (r *Repository) fetchWithReauth(ctx context.Context, rng model.DateRange) (portal.Page, error) {
	page, err := r.client.Fetch(ctx, rng)
	if err == nil || !errors.Is(err, portal.ErrSessionExpired) {
		return page, err
	}

	appLog.Info("portal session expired, re-authenticating", "range", rng)
	if aerr := r.client.Authenticate(ctx); aerr != nil {
		return portal.Page{}, aerr
	}

	page, err = r.client.Fetch(ctx, rng)
	if errors.Is(err, portal.ErrSessionExpired) {
		// A fresh session that immediately expires means the portal will
		// not let us in at all.
		return portal.Page{}, fmt.Errorf("%w: session rejected after re-authentication", portal.ErrAuth)
	}
	return page, err
}
