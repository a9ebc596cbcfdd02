package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"tunefeed/backend"
	appConfig "tunefeed/config"
	"tunefeed/controller"
	"tunefeed/database"
	"tunefeed/handlers"
	appSentry "tunefeed/sentry"
	"tunefeed/sentryhelper"
	"tunefeed/session"
	"tunefeed/spotify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	app := &cli.Command{
		Name:  "tunefeed",
		Usage: "See what your friends are listening to",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional TOML configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Before: setup,
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the web server (default)",
				Action: serve,
			},
			{
				Name:   "routes",
				Usage:  "Print the page route table",
				Action: routes,
			},
			{
				Name:  "sessions",
				Usage: "Session maintenance",
				Commands: []*cli.Command{
					{
						Name:   "prune",
						Usage:  "Delete expired sessions",
						Action: pruneSessions,
					},
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		appSentry.Flush()
		log.Fatalf("application error: %v", err)
	}
	appSentry.Flush()
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := appConfig.NewConfig(cmd.String("config")); err != nil {
		return ctx, err
	}
	cfg := appConfig.Config

	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		FieldsOrder:     []string{"module", "method"},
		TimestampFormat: time.RFC3339,
	})
	level, err := log.ParseLevel(cfg.Options.LogLevel)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", cfg.Options.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if err := appSentry.Init(cfg.Sentry, cfg.Options.Release); err != nil {
		return ctx, fmt.Errorf("sentry.Init: %w", err)
	}
	return ctx, nil
}

func newController(cfg *appConfig.ConfigStruct) (*controller.Controller, *database.Database, error) {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	ctrl := controller.NewController(db,
		backend.NewFromConfig(cfg.Backend),
		spotify.NewAuthorizer(cfg.Spotify),
		controller.SettingsFromConfig(cfg),
	)
	return ctrl, db, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg := appConfig.Config
	ctrl, db, err := newController(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Options.LogLevel != "debug" && cfg.Options.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), appSentry.GetSentryGin(), handlers.RequestLogger())

	manager := handlers.NewManager(ctrl, session.CookieOptions{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
		MaxAge: cfg.Session.TTL(),
	})
	manager.Register(router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go pruneLoop(ctx, ctrl, manager.Hints)

	server := &http.Server{
		Addr:              ":" + cfg.Options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on :%s (backend %s)", cfg.Options.Port, cfg.Backend.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// pruneLoop drops idle sessions and stale hint cooldowns once an hour.
func pruneLoop(ctx context.Context, ctrl *controller.Controller, hints *handlers.Hints) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ctrl.Sessions.Prune()
			if err != nil {
				log.Errorf("Failed to prune sessions: %v", err)
				appSentry.ReportError(err)
				continue
			}
			log.Debugf("Pruned %d sessions and %d hint cooldowns", n, hints.Prune())
		}
	}
}

func routes(ctx context.Context, cmd *cli.Command) error {
	ctrl := controller.NewController(nil,
		backend.NewFromConfig(appConfig.Config.Backend),
		spotify.NewAuthorizer(appConfig.Config.Spotify),
		controller.SettingsFromConfig(appConfig.Config),
	)
	for _, pattern := range ctrl.Views.Routes() {
		fmt.Println(pattern)
	}
	return nil
}

func pruneSessions(ctx context.Context, cmd *cli.Command) error {
	ctx, span := sentryhelper.StartTaskTransaction(ctx, "sessions.prune")
	defer span.Finish()

	ctrl, db, err := newController(appConfig.Config)
	if err != nil {
		sentryhelper.CaptureException(ctx, err)
		return err
	}
	defer db.Close()

	n, err := ctrl.Sessions.Prune()
	if err != nil {
		sentryhelper.CaptureException(ctx, err)
		return fmt.Errorf("failed to prune sessions: %w", err)
	}
	log.Infof("Pruned %d expired sessions", n)
	return nil
}
