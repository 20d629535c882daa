package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"github.com/glefebvre/housou/internal/circuitbreaker"
	"github.com/glefebvre/housou/internal/client"
	"github.com/glefebvre/housou/internal/config"
	"github.com/glefebvre/housou/internal/database"
	apperrors "github.com/glefebvre/housou/internal/errors"
	"github.com/glefebvre/housou/internal/logger"
	"github.com/glefebvre/housou/internal/models"
	"github.com/glefebvre/housou/internal/retry"
	"github.com/glefebvre/housou/internal/selection"
)

// newClient builds the schedule API client configured in cfg
func newClient(cfg *config.Config) (*client.Client, error) {
	retryCfg := retry.DefaultConfig()
	if cfg.API.ConfigRetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.API.ConfigRetryAttempts
	}

	breaker := circuitbreaker.DefaultConfig()
	if cfg.API.MetadataMaxFailures > 0 {
		breaker.MaxFailures = uint(cfg.API.MetadataMaxFailures)
	}
	if cfg.API.MetadataCooldownSeconds > 0 {
		breaker.Cooldown = time.Duration(cfg.API.MetadataCooldownSeconds) * time.Second
	}

	return client.New(cfg.API.BaseURL, client.Options{
		Timeout:     cfg.APITimeout(),
		ConfigRetry: retryCfg,
		Breaker:     breaker,
	})
}

// app is what the terminal commands share once the configuration is loaded
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	client *client.Client
	log    *logger.Logger
}

// openApp initializes logging to logOut, the selection store and the API client
func openApp(logOut io.Writer) (*app, error) {
	cfg := config.Get()
	logger.InitializeLoggersWithOutput(logOut, cfg.GetAppLogLevel(), cfg.GetDatabaseLogLevel(), cfg.Logging.Format)

	if err := database.Initialize(cfg); err != nil {
		return nil, err
	}

	c, err := newClient(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	return &app{cfg: cfg, db: database.Get(), client: c, log: logger.AppLogger()}, nil
}

func (a *app) close() {
	if err := database.Close(); err != nil {
		a.log.Error("Failed to close database", err)
	}
	logger.Sync()
}

func (a *app) store() *selection.Store {
	return selection.NewStore(a.db, "")
}

// scheduleData is one season's worth of broadcasts as the terminal renders it
type scheduleData struct {
	cfg      *models.Config
	sel      models.Selections
	items    []models.AnimeItem
	itemsErr error
}

// load fetches the configuration, resolves and updates the stored selections and
// fetches their items. Only a configuration failure or a rejected change is fatal;
// an items failure is carried in itemsErr.
func (a *app) load(ctx context.Context, change selection.Change) (*scheduleData, error) {
	cfg, err := a.client.FetchConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load the schedule configuration (%s): %w", apperrors.UserMessage(err), err)
	}

	store := a.store()
	now := time.Now()
	sel, err := store.LoadResolved(ctx, cfg, now)
	if err != nil {
		a.log.ErrorContext(ctx, "Failed to load selections", err)
		sel = selection.Resolve(selection.Defaults, cfg, now)
	}

	if !change.IsEmpty() {
		if sel, err = store.Update(ctx, sel, change, cfg); err != nil {
			return nil, err
		}
	}

	data := &scheduleData{cfg: cfg, sel: sel}
	if sel.Year != "" {
		data.items, data.itemsErr = a.client.FetchItems(ctx, sel.Year, sel.Season)
	}
	return data, nil
}
