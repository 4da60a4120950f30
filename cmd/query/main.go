// Command query counts unique vehicles in a tracker day log, or in the
// SQLite mirror, within a time window. With --listen it serves the same
// counts over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/camera.report/internal/api"
	"github.com/banshee-data/camera.report/internal/cliutil"
	"github.com/banshee-data/camera.report/internal/config"
	"github.com/banshee-data/camera.report/internal/db"
	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/timeutil"
	"github.com/banshee-data/camera.report/internal/version"
)

var (
	date                = flag.String("date", "", "Date to query (YYYY-MM-DD)")
	startTime           = flag.String("start_time", "", "Start of the window (HH:MM:SS)")
	endTime             = flag.String("end_time", "", "End of the window (HH:MM:SS)")
	confidenceThreshold = flag.Float64("confidence_threshold", 0.3, "Minimum detection confidence")
	filePath            = flag.String("file_path", "./results", "Directory holding the day logs")
	detailed            = flag.Bool("detailed", false, "Read the detailed log")
	summary             = flag.Bool("summary", false, "Also print counts per vehicle type")
	plotPath            = flag.String("plot", "", "Write a PNG of hourly counts")
	dbPath              = flag.String("db", "", "Count from this SQLite database instead of the day log")
	camera              = flag.String("camera", "", "Camera token to select in --db mode")
	remote              = flag.String("remote", "", "Count through a query server at this URL")
	listen              = flag.String("listen", "", "Serve counts over HTTP on this address instead")
	configPath          = flag.String("config", "", "JSON tuning file (db_path, timezone)")
	envFile             = flag.String("env", ".env", "Environment file")
	showVersion         = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("query", version.String())
		return
	}
	if err := cliutil.LoadEnv(*envFile); err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}

	cfg, err := config.LoadOrEmpty(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := timeutil.SetLocalZone(cfg.GetTimezone()); err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}
	database := cliutil.FirstNonEmpty(*dbPath, cfg.GetDBPath())

	if flag.Arg(0) == "migrate" {
		if database == "" {
			log.Fatal("migrate needs --db or db_path in --config")
		}
		if err := db.RunMigrateCommand(flag.Args()[1:], database, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if *listen != "" {
		serve(*listen, *filePath, database)
		return
	}

	cli := &CLI{FS: fsutil.OSFileSystem{}, Out: os.Stdout}
	err = cli.Run(context.Background(), Options{
		Date:                *date,
		StartTime:           *startTime,
		EndTime:             *endTime,
		ConfidenceThreshold: *confidenceThreshold,
		FilePath:            *filePath,
		Detailed:            *detailed,
		Summary:             *summary,
		Plot:                *plotPath,
		DBPath:              database,
		Camera:              *camera,
		Remote:              *remote,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
}

func serve(addr, dir, dbPath string) {
	var database *db.DB
	if dbPath != "" {
		var err error
		database, err = db.NewDB(dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()
	}

	mux := api.NewServer(fsutil.OSFileSystem{}, dir, database).ServeMux()
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("serving %s on %s", dir, addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
}
