package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/drivenotify/internal/channel"
	"github.com/ziadkadry99/drivenotify/internal/config"
	"github.com/ziadkadry99/drivenotify/internal/db"
	"github.com/ziadkadry99/drivenotify/internal/delivery"
	"github.com/ziadkadry99/drivenotify/internal/logging"
	"github.com/ziadkadry99/drivenotify/internal/message"
	"github.com/ziadkadry99/drivenotify/internal/notifications"
	"github.com/ziadkadry99/drivenotify/internal/pipeline"
	"github.com/ziadkadry99/drivenotify/internal/recipients"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `drivenotify init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg *config.Config, writers ...io.Writer) (zerolog.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level, cfg.Log.Format, writers...)
}

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	db        *db.DB
	store     *notifications.Store
	channel   channel.Channel
	formatter *message.Formatter
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc := time.UTC
	if cfg.Message.Timezone != "" {
		l, err := time.LoadLocation(cfg.Message.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
		loc = l
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		db:        database,
		store:     notifications.NewStore(database),
		channel:   channel.New(cfg, logger),
		formatter: message.NewFormatter(message.NewCatalog(cfg.Templates), loc),
	}, nil
}

func (a *app) Close() error { return a.db.Close() }

// worker builds a started delivery worker reporting to observers.
func (a *app) worker(observers ...delivery.Observer) *delivery.Worker {
	d := delivery.NewDispatcher(a.channel, a.cfg.Delivery.PacingInterval, a.logger, observers...)
	w := delivery.NewWorker(d, a.cfg.Delivery.QueueSize, a.cfg.Delivery.Workers, a.logger)
	w.Start()
	return w
}

func (a *app) pipeline(queue pipeline.Queue) *pipeline.Pipeline {
	return pipeline.New(
		recipients.NewConfigResolver(a.cfg.Recipients, a.logger),
		a.formatter,
		a.store,
		queue,
		pipeline.Options{
			AttachThumbnail: a.cfg.Delivery.AttachThumbnail,
			TestNumber:      a.cfg.Recipients.TestNumber,
		},
		a.logger,
	)
}
