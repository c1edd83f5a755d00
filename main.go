/*
Mapview watches a robot explore a grid arena. It holds a websocket open to the exploration
server, renders every map update it receives (cells, robot body and heading) to a png,
and serves that png on a small page with two buttons: one to start exploration and
one to run the fastest path. The same two triggers can be sent once from the command
line with -start and -fsp, without opening the viewer.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mapview/config"
	"mapview/liveclient"
	"mapview/models"
	"mapview/render"
	"mapview/server"
	"mapview/trigger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "./config.yaml", "path to the config file, empty for defaults")
	start      = flag.Bool("start", false, "send the start trigger and exit")
	fsp        = flag.Bool("fsp", false, "send the fastest path trigger and exit")
	dbg        = flag.Bool("debug", false, "debug logging")
)

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	if *dbg {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// sendTriggers sends the requested one-shot triggers and waits for each response.
func sendTriggers(ctx context.Context, cfg *config.Config) error {
	tr := trigger.New(cfg.HTTPBase(), nil)
	if *start {
		if err := tr.Do(ctx, trigger.StartPath); err != nil {
			return err
		}
		log.Info().Msg("start sent")
	}
	if *fsp {
		if err := tr.Do(ctx, trigger.FSPPath); err != nil {
			return err
		}
		log.Info().Msg("fastest path sent")
	}
	return nil
}

func runApp(ctx context.Context, cfg *config.Config) (err error) {
	renderer := render.NewRenderer(cfg.CanvasRows, cfg.CanvasCols)

	var viewer *server.Server
	if viewer, err = server.NewServer(
		cfg.ListenAddr,
		renderer,
		trigger.New(cfg.HTTPBase(), nil),
		cfg.SnapshotPath,
	); err != nil {
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// The client's single reader feeds the single consumer, so frames render in arrival order.
	frames := make(chan models.Frame)
	exportFrame := func(frame models.Frame) {
		select {
		case frames <- frame:
		case <-groupCtx.Done():
		}
	}

	client := liveclient.New(
		cfg.Host,
		liveclient.FrameHandlerFunc(exportFrame),
		liveclient.WithSecure(cfg.Secure),
		liveclient.WithReconnectDelay(cfg.ReconnectDelay),
		liveclient.WithGreeting(cfg.Greeting),
	)

	group.Go(func() error {
		return viewer.Serve(groupCtx)
	})
	group.Go(func() error {
		viewer.Consume(groupCtx, frames)
		return nil
	})
	group.Go(func() error {
		return client.Run(groupCtx)
	})

	err = group.Wait()
	return
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.FromYaml(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *start || *fsp {
		err = sendTriggers(ctx, cfg)
	} else {
		err = runApp(ctx, cfg)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("mapview exited")
	}
}
