// cmd/trailhead/main.go
//
// This is the entry point for the trailhead CLI.
// When you run `trailhead` from any directory, this is what executes.
//
// Flow:
// 1. Make sure .trailhead/ exists and load its config
// 2. Wire the trip source, geo providers, autosave slot and handoff sink
// 3. Start the map bridge so a browser map can send taps
// 4. Launch the TUI

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/trailhead/internal/autosave"
	"github.com/kingrea/trailhead/internal/composer"
	"github.com/kingrea/trailhead/internal/config"
	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/geo"
	"github.com/kingrea/trailhead/internal/logbook"
	"github.com/kingrea/trailhead/internal/mapbridge"
	"github.com/kingrea/trailhead/internal/record"
	"github.com/kingrea/trailhead/internal/tui"
	"github.com/kingrea/trailhead/internal/wizard"
)

func main() {
	editID := flag.String("edit", "", "open the persisted trip with this id")
	resumeID := flag.String("resume", "", "resume the local snapshot of this draft id")
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		fail("getting working directory", err)
	}
	if err := config.InitTrailheadDir(cwd); err != nil {
		fail("initializing .trailhead directory", err)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fail("loading config", err)
	}

	book, err := logbook.New(cfg.LogPath())
	if err != nil {
		fail("opening session log", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher, closeFetcher, err := openFetcher(ctx, cfg)
	if err != nil {
		fail("connecting to the trip source", err)
	}
	defer closeFetcher()

	geoCfg := cfg.Project.Geo
	geoClient, err := geo.NewClient(geo.ClientConfig{
		NominatimURL:      geoCfg.NominatimURL,
		OSRMURL:           geoCfg.OSRMURL,
		Profile:           geoCfg.Profile,
		UserAgent:         geoCfg.UserAgent,
		RequestsPerSecond: geoCfg.RequestsPerSecond,
		CacheSize:         geoCfg.CacheSize,
		Timeout:           cfg.GeoTimeout(),
	})
	if err != nil {
		fail("configuring geo providers", err)
	}

	slot, closeSlot := openAutosave(ctx, cfg, book)
	defer closeSlot()

	store := draft.NewStore()
	bridge := mapbridge.NewServer(mapbridge.SettingsFromConfig(cfg), mapbridge.WithLogger(book))
	comp := composer.New(store, geoClient, composer.WithRouteListener(bridge.Publish))

	ctrl, err := wizard.New(store, fetcher,
		wizard.WithAutosave(slot),
		wizard.WithHandoff(wizard.NewFileHandoff(cfg.HandoffDir())),
		wizard.WithLogbook(book),
	)
	if err != nil {
		fail("building wizard", err)
	}

	taps := &tapForwarder{ctrl: ctrl, comp: comp}
	bridge.SetProcessor(taps)

	bridgeURL := ""
	if err := bridge.Start(ctx); err != nil {
		if !errors.Is(err, mapbridge.ErrDisabled) {
			book.Warn("map bridge unavailable: %v", err)
		}
	} else {
		bridgeURL = bridge.BaseURL()
		book.Info("map bridge listening on %s", bridgeURL)
	}

	app, err := tui.NewApp(tui.Deps{
		Controller: ctrl,
		Composer:   comp,
		Search:     composer.NewSearchSession(geoClient, cfg.Project.Search.MinQueryLength),
		Logbook:    book,
	},
		tui.WithContext(ctx),
		tui.WithDebounce(cfg.SearchDebounce()),
		tui.WithStartupEdit(*editID),
		tui.WithStartupResume(*resumeID),
		tui.WithBridgeURL(bridgeURL),
		tui.WithDefaultCurrency(cfg.Project.Defaults.Currency),
	)
	if err != nil {
		fail("building TUI", err)
	}

	program := tea.NewProgram(app, tea.WithAltScreen())
	taps.attach(program.Send)
	_, runErr := program.Run()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := bridge.Shutdown(shutdownCtx); err != nil {
		book.Warn("map bridge shutdown: %v", err)
	}
	if runErr != nil {
		fail("running TUI", runErr)
	}
}

func openFetcher(ctx context.Context, cfg *config.Config) (record.Fetcher, func(), error) {
	backend := cfg.Project.Backend
	if backend.Source == config.SourceMongo {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		fetcher, disconnect, err := record.DialMongo(dialCtx, backend.Mongo.URI, backend.Mongo.Database, backend.Mongo.Collection)
		if err != nil {
			return nil, nil, err
		}
		return fetcher, func() {
			closeCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = disconnect(closeCtx)
		}, nil
	}
	var opts []record.HTTPOption
	if backend.Token != "" {
		opts = append(opts, record.WithToken(backend.Token))
	}
	return record.NewHTTPFetcher(backend.BaseURL, opts...), func() {}, nil
}

// openAutosave falls back to the file slot when Redis cannot be reached.
func openAutosave(ctx context.Context, cfg *config.Config, book *logbook.Logbook) (autosave.Slot, func()) {
	switch cfg.Project.Autosave.Backend {
	case config.AutosaveOff:
		return autosave.Nop{}, func() {}
	case config.AutosaveRedis:
		r := cfg.Project.Autosave.Redis
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		slot, closeFn, err := autosave.DialRedis(dialCtx, r.Addr, r.Password, r.DB, cfg.RedisTTL())
		if err == nil {
			return slot, func() { _ = closeFn() }
		}
		book.Warn("redis autosave unavailable, using files: %v", err)
	}
	return autosave.NewFileSlot(cfg.AutosaveDir()), func() {}
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", action, err)
	os.Exit(1)
}
