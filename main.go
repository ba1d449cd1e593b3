// main.go - Entry point and dependency injection
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/kitesync/kitesync/internal/config"
	"github.com/kitesync/kitesync/internal/database"
	"github.com/kitesync/kitesync/internal/models"
	"github.com/kitesync/kitesync/internal/strava"
	"github.com/kitesync/kitesync/internal/uploader"
	"github.com/kitesync/kitesync/internal/web"

	_ "github.com/mattn/go-sqlite3"
)

type App struct {
	cfg      *config.Config
	db       *database.SQLiteStore
	cron     *cron.Cron
	server   *http.Server
	strava   *strava.Client
	uploader *uploader.Service
	shutdown chan os.Signal
}

func main() {
	gpxDir := flag.String("gpx-dir", "", "directory containing GPX/FIT files (overrides GPX_DIR)")
	dryRun := flag.Bool("dry-run", false, "log the upload payloads but do not call the Strava API")
	noPoll := flag.Bool("no-poll", false, "do not poll Strava for upload processing status")
	daemon := flag.Bool("daemon", false, "keep running: sync on a schedule and serve the status UI")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *gpxDir != "" {
		cfg.GPXDir = *gpxDir
	}

	app := &App{
		cfg:      cfg,
		shutdown: make(chan os.Signal, 1),
	}

	if err := app.init(uploader.Options{DryRun: *dryRun, NoPoll: *noPoll}); err != nil {
		log.Fatal("Failed to initialize app: ", err)
	}

	if !*daemon {
		os.Exit(app.runOnce())
	}

	app.initDaemon()
	app.start()

	// Wait for shutdown signal
	signal.Notify(app.shutdown, os.Interrupt, syscall.SIGTERM)
	<-app.shutdown

	app.stop()
}

func (app *App) init(opts uploader.Options) error {
	if dir := filepath.Dir(app.cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := database.NewSQLiteStore(app.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	app.db = db

	app.strava = strava.NewClient(strava.Credentials{
		ClientID:     app.cfg.ClientID,
		ClientSecret: app.cfg.ClientSecret,
		RefreshToken: app.cfg.RefreshToken,
	})

	app.uploader = uploader.New(app.strava, app.db, app.cfg.GPXDir, opts)

	return nil
}

// initDaemon wires the pieces a one-shot run has no use for: the
// scheduler and the status web server.
func (app *App) initDaemon() {
	app.cron = cron.New()

	router := gin.Default()
	web.NewHandler(app.db, app.uploader.Run).RegisterRoutes(router)
	app.server = &http.Server{
		Addr:    app.cfg.ListenAddr,
		Handler: router,
	}
}

// runOnce executes a single batch and exits. Per-file outcomes go to
// stdout; the exit code is non-zero when any file failed.
func (app *App) runOnce() int {
	defer app.db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := app.uploader.Run(ctx)
	if err != nil {
		log.Printf("Run failed: %v", err)
		return 1
	}

	for _, res := range report.Results {
		fmt.Println(res.String())
	}
	fmt.Println(report.Summary())

	if report.Count(models.StatusFailed) > 0 {
		return 1
	}
	return 0
}

func (app *App) start() {
	if _, err := app.cron.AddFunc(app.cfg.SyncSchedule, func() {
		log.Println("Starting scheduled upload run...")
		if _, err := app.uploader.Run(context.Background()); err != nil {
			log.Printf("Scheduled run failed: %v", err)
		}
	}); err != nil {
		log.Printf("Invalid sync schedule %q: %v", app.cfg.SyncSchedule, err)
	}
	app.cron.Start()

	go func() {
		log.Printf("Server starting on %s", app.cfg.ListenAddr)
		if err := app.server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()
}

func (app *App) stop() {
	log.Println("Shutting down...")

	app.cron.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if app.db != nil {
		app.db.Close()
	}

	log.Println("Shutdown complete")
}
