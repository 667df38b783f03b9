package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/mediagrab"
	"github.com/alanbriolat/mediagrab/async"
	"github.com/alanbriolat/mediagrab/internal/console"
	"github.com/alanbriolat/mediagrab/internal/extract"
	"github.com/alanbriolat/mediagrab/internal/fetch"
	"github.com/alanbriolat/mediagrab/internal/relay"
	"github.com/alanbriolat/mediagrab/provider/spotify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config := mediagrab.DefaultConfig
	config.DownloadDir = "."
	config.IsolateJobs = false

	app := &cli.App{
		Name:      "mediagrab",
		Usage:     "download media from one or more URLs",
		ArgsUsage: "URL...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "target",
				Value:       config.DownloadDir,
				Usage:       "save downloaded media to `DIR`",
				Destination: &config.DownloadDir,
			},
			&cli.StringFlag{
				Name:  "format",
				Value: fetch.FormatBest,
				Usage: "download format `ID`, or \"" + fetch.FormatAPIDirect + "\" to go straight to the relay",
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
				EnvVars:     []string{"MEDIAGRAB_RELAY_URL"},
				Destination: &config.RelayBaseURL,
			},
			&cli.StringFlag{
				Name:        "relay-token",
				EnvVars:     []string{"MEDIAGRAB_RELAY_TOKEN"},
				Destination: &config.RelayToken,
			},
			&cli.StringFlag{
				Name:        "ffmpeg-location",
				EnvVars:     []string{"MEDIAGRAB_FFMPEG_LOCATION"},
				Destination: &config.FFmpegLocation,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.ShowAppHelp(c)
			}
			logConfig := zap.NewDevelopmentConfig()
			logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			if !c.Bool("debug") {
				logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
			}
			logger, err := logConfig.Build()
			if err != nil {
				return fmt.Errorf("can't initialize zap logger: %w", err)
			}
			defer logger.Sync()
			zap.RedirectStdLog(logger)
			zap.ReplaceGlobals(logger)

			music := spotify.New(config.MetadataTimeout)
			relayClient := relay.NewClient(config.RelayBaseURL, config.RelayToken, config.RelayTimeout, config.RelayRate)
			chain := fetch.NewChain(&config, extract.NewYtDlp(), relayClient, music)
			ctx := mediagrab.WithLogger(ctx, logger)
			for _, url := range c.Args().Slice() {
				if err := download(ctx, chain, url, c.String("format")); err != nil {
					return err
				}
			}
			return nil
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err := <-result:
		if err != nil {
			log.Fatal(err.Error())
		}
	case <-ctx.Done():
		stop()
		if err := <-result; err != nil {
			log.Fatal(err.Error())
		}
	}
}

func download(ctx context.Context, chain *fetch.Chain, url string, format string) error {
	logger := mediagrab.Logger(ctx).Sugar()
	logger.Infof("Downloading %s (format %s)", url, format)

	sink := console.NewSink(os.Stderr)
	path, err := chain.Fetch(ctx, url, format, "", sink)
	if err != nil {
		return fmt.Errorf("%s: %s", url, mediagrab.UserMessage(err))
	}
	sink.Done()
	fmt.Println(path)
	return nil
}
