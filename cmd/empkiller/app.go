package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/Alzter/EmpKiller/internal/calendar"
	"github.com/Alzter/EmpKiller/internal/calsync"
	"github.com/Alzter/EmpKiller/internal/config"
	"github.com/Alzter/EmpKiller/internal/portal"
	"github.com/Alzter/EmpKiller/internal/roster"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg  *config.Config
	repo *roster.Repository

	// cleanup releases driver resources (the headless browser, if used).
	cleanup func()
}

// loadApp loads the config and credentials and wires the portal client,
// parser and repository.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	creds, err := config.LoadCredentials(cfg.Portal.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	a := &app{cfg: cfg, cleanup: func() {}}

	var client portal.Client
	switch cfg.Portal.Driver {
	case "browser":
		bc, err := portal.NewBrowserClient(ctx, creds, portal.BrowserOptions{
			BaseURL:    cfg.Portal.URL,
			Location:   loc,
			MaxReloads: cfg.Portal.MaxReloads,
		})
		if err != nil {
			return nil, fmt.Errorf("starting browser driver: %w", err)
		}
		a.cleanup = bc.Close
		client = bc
	default:
		hc, err := portal.NewHTTPClient(creds, portal.HTTPOptions{
			BaseURL:    cfg.Portal.URL,
			Location:   loc,
			MaxReloads: cfg.Portal.MaxReloads,
		})
		if err != nil {
			return nil, fmt.Errorf("creating portal client: %w", err)
		}
		client = hc
	}

	parser := roster.NewParser(loc)
	a.repo = roster.NewRepository(client, parser, cfg.WeekStartDay())
	return a, nil
}

// synchronizer builds the calendar synchronizer for the configured target.
func (a *app) synchronizer(ctx context.Context) (*calsync.Synchronizer, error) {
	store, err := a.calendarStore(ctx)
	if err != nil {
		return nil, err
	}
	return calsync.New(store), nil
}

func (a *app) calendarStore(ctx context.Context) (calendar.Store, error) {
	switch a.cfg.Calendar.Target {
	case "google":
		return a.googleStore(ctx)
	default:
		return calendar.NewICSFileStore(a.cfg.Calendar.ICSPath)
	}
}

func (a *app) googleStore(ctx context.Context) (calendar.Store, error) {
	g := a.cfg.Calendar.Google

	clientJSON, err := os.ReadFile(g.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("reading oauth client file: %w", err)
	}
	conf, err := google.ConfigFromJSON(clientJSON, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing oauth client file: %w", err)
	}

	tokenJSON, err := os.ReadFile(g.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading oauth token file: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parsing oauth token file: %w", err)
	}

	return calendar.NewGoogleStore(ctx, conf, &token, g.CalendarID)
}
