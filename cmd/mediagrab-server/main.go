package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/async"
	"github.com/alanbriolat/mediagrab/internal/boltdb"
	"github.com/alanbriolat/mediagrab/internal/extract"
	"github.com/alanbriolat/mediagrab/internal/fetch"
	"github.com/alanbriolat/mediagrab/internal/jobs"
	"github.com/alanbriolat/mediagrab/internal/relay"
	"github.com/alanbriolat/mediagrab/internal/server"
	"github.com/alanbriolat/mediagrab/provider/spotify"
	"github.com/alanbriolat/mediagrab/providers"
)

const shutdownTimeout = 5 * time.Second

func newLogger(debug bool) (*zap.Logger, error) {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}
	return config.Build()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := mediagrab.DefaultConfig
	serverConfig := server.DefaultConfig
	var logger *zap.Logger

	app := &cli.App{
		Name:  "mediagrab-server",
		Usage: "serve the media download API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "listen on `PORT`",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:        "download-dir",
				Value:       config.DownloadDir,
				Usage:       "save downloads under `DIR`",
				EnvVars:     []string{"MEDIAGRAB_DOWNLOAD_DIR"},
				Destination: &config.DownloadDir,
			},
			&cli.StringFlag{
				Name:        "cookie-file",
				Value:       config.CookieFile,
				Usage:       "use cookies from `FILE` when it exists",
				EnvVars:     []string{"MEDIAGRAB_COOKIE_FILE"},
				Destination: &config.CookieFile,
			},
			&cli.StringFlag{
				Name:        "relay-url",
				Usage:       "fall back to the relay at `URL`",
				EnvVars:     []string{"MEDIAGRAB_RELAY_URL"},
				Destination: &config.RelayBaseURL,
			},
			&cli.StringFlag{
				Name:        "relay-token",
				Usage:       "authenticate to the relay with `TOKEN`",
				EnvVars:     []string{"MEDIAGRAB_RELAY_TOKEN"},
				Destination: &config.RelayToken,
			},
			&cli.DurationFlag{
				Name:        "relay-timeout",
				Value:       config.RelayTimeout,
				EnvVars:     []string{"MEDIAGRAB_RELAY_TIMEOUT"},
				Destination: &config.RelayTimeout,
			},
			&cli.Float64Flag{
				Name:        "relay-rate",
				Value:       config.RelayRate,
				Usage:       "maximum relay lookups per second (0 for unlimited)",
				EnvVars:     []string{"MEDIAGRAB_RELAY_RATE"},
				Destination: &config.RelayRate,
			},
			&cli.StringFlag{
				Name:        "ffmpeg-location",
				Usage:       "use the ffmpeg binary at `PATH`",
				EnvVars:     []string{"MEDIAGRAB_FFMPEG_LOCATION"},
				Destination: &config.FFmpegLocation,
			},
			&cli.StringFlag{
				Name:        "database",
				Value:       config.DatabasePath,
				Usage:       "keep finished jobs in `FILE`",
				EnvVars:     []string{"MEDIAGRAB_DATABASE"},
				Destination: &config.DatabasePath,
			},
			&cli.BoolFlag{
				Name:        "isolate-jobs",
				Value:       config.IsolateJobs,
				Usage:       "save each job's output in its own directory",
				EnvVars:     []string{"MEDIAGRAB_ISOLATE_JOBS"},
				Destination: &config.IsolateJobs,
			},
			&cli.StringSliceFlag{
				Name:    "allowed-origin",
				Usage:   "allow cross-origin requests from `ORIGIN` (default any)",
				EnvVars: []string{"MEDIAGRAB_ALLOWED_ORIGINS"},
			},
			&cli.BoolFlag{
				Name:  "install",
				Usage: "download yt-dlp if it isn't already available",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"MEDIAGRAB_DEBUG"},
			},
		},
		Before: func(c *cli.Context) (err error) {
			if logger, err = newLogger(c.Bool("debug")); err != nil {
				return fmt.Errorf("can't initialize zap logger: %w", err)
			}
			zap.RedirectStdLog(logger)
			zap.ReplaceGlobals(logger)
			return nil
		},
		Action: func(c *cli.Context) error {
			serverConfig.AllowedOrigins = c.StringSlice("allowed-origin")
			return serve(ctx, &config, serverConfig, c.Int("port"), c.Bool("install"))
		},
		HideHelpCommand: true,
	}

	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()

	if err := <-async.Run(func() error { return app.Run(os.Args) }); err != nil {
		// The standard logger is redirected to zap once flags are parsed.
		log.Fatal(err.Error())
	}
}

func serve(ctx context.Context, config *mediagrab.Config, serverConfig server.Config, port int, install bool) error {
	logger := zap.S()

	if install {
		path, version, err := extract.Install(ctx)
		if err != nil {
			return err
		}
		logger.Infow("yt-dlp ready", "path", path, "version", version)
	}
	if ffmpeg, err := extract.FindFFmpeg(config.FFmpegLocation); err != nil {
		logger.Warnw("ffmpeg unavailable, post-processing will fail", "error", err)
	} else {
		logger.Infow("using ffmpeg", "location", ffmpeg)
	}
	if _, ok := config.CookiePath(); !ok {
		logger.Infow("no cookie file, fetching without credentials", "cookie_file", config.CookieFile)
	}

	db, err := boltdb.New(config.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	registry, err := jobs.NewRegistry(db)
	if err != nil {
		return err
	}
	defer registry.Close()

	extractor := extract.NewYtDlp()
	music := spotify.New(config.MetadataTimeout)
	relayClient := relay.NewClient(config.RelayBaseURL, config.RelayToken, config.RelayTimeout, config.RelayRate)
	if !relayClient.Configured() {
		logger.Info("no relay configured, relay fallback disabled")
	}
	chain := fetch.NewChain(config, extractor, relayClient, music)
	// Jobs outlive the requests that created them, and only stop at shutdown.
	worker := jobs.NewWorker(ctx, registry, chain)
	defer worker.Wait()

	resolver := providers.New(config, extractor, music)
	logger.Infow("providers registered", "providers", resolver.List())
	srv := server.New(serverConfig, registry, worker, chain, resolver)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(zap.L()),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("listening", "addr", httpServer.Addr, "download_dir", config.DownloadDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
