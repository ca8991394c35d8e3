package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
)

func main() {
	cfg := config{}
	flag.DurationVar(&cfg.interval, "interval", 1*time.Second, "UI refresh interval")
	flag.DurationVar(&cfg.cmdTimeout, "cmd-timeout", 30*time.Second, "timeout for each systemctl command")
	flag.IntVar(&cfg.chatLines, "chat-lines", 15, "number of chat lines to keep")
	flag.IntVar(&cfg.logLines, "log-lines", 500, "number of journal lines per shard")
	flag.BoolVar(&cfg.botMode, "bot", false, "run headless with the Discord bridge only")
	flag.BoolVar(&cfg.botWorker, "bot-worker", false, "internal: run the Discord worker process")
	flag.Parse()

	if cfg.interval < 200*time.Millisecond {
		cfg.interval = 200 * time.Millisecond
	}
	if cfg.cmdTimeout < 1*time.Second {
		cfg.cmdTimeout = 1 * time.Second
	}
	if cfg.chatLines < 1 {
		cfg.chatLines = 1
	}
	if cfg.logLines < 50 {
		cfg.logLines = 50
	}
	systemctlTimeout = cfg.cmdTimeout

	if cfg.botWorker {
		if err := runBotWorker(); err != nil {
			fmt.Fprintln(os.Stderr, "bot worker:", err)
			os.Exit(1)
		}
		return
	}

	loadEnvFile(envFilePath())
	closeLog := setupLogging(cfg.botMode)
	defer closeLog()

	cfg.game = loadGameConfig()

	app := &appContext{
		cfg:    cfg,
		states: newStateManager(),
		bus:    newEventBus(),
	}
	for _, p := range registeredPlugins() {
		app.plugins = append(app.plugins, p)
	}

	if cfg.botMode {
		if err := runHeadless(app); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := runDashboard(app); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runHeadless drives the coordinator and plugins without a terminal,
// for running the Discord bridge on a box with no attached session.
func runHeadless(app *appContext) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startPlugins(ctx, app)
	defer stopPlugins(app)

	coord := newCoordinator(app)
	coord.start(ctx)
	defer coord.stop()

	coord.runInBackground(ctx, func(wctx context.Context) {
		syncShards(wctx, readDesiredShards())
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	return nil
}

func runDashboard(app *appContext) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %w", err)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startPlugins(ctx, app)
	defer stopPlugins(app)

	coord := newCoordinator(app)
	coord.start(ctx)
	defer coord.stop()

	ctl := &controller{app: app, coord: coord}

	coord.runInBackground(ctx, func(wctx context.Context) {
		syncShards(wctx, readDesiredShards())
		app.states.setInfo("shards synced with shards.conf")
	})

	exitSub := app.bus.subscribe(eventExitRequested, func(event) { cancel() })
	defer app.bus.unsubscribe(eventExitRequested, exitSub)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	draw(screen, app.states.snapshot())
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	refreshTicker := time.NewTicker(app.cfg.interval)
	defer refreshTicker.Stop()

	frameInterval := 33 * time.Millisecond

	running := true
	for running {
		select {
		case <-ctx.Done():
			running = false
		case <-refreshTicker.C:
			app.states.requestRedraw()
		case <-ticker.C:
			if app.states.consumeRedraw(frameInterval) {
				draw(screen, app.states.snapshot())
			}
		case ev, ok := <-events:
			if !ok {
				running = false
				break
			}
			switch tev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				draw(screen, app.states.snapshot())
			case *tcell.EventKey:
				if ctl.handleKey(ctx, tev) {
					running = false
					break
				}
				if app.states.consumeRedraw(0) {
					draw(screen, app.states.snapshot())
				}
			}
		}
	}
	return nil
}

func startPlugins(ctx context.Context, app *appContext) {
	started := app.plugins[:0]
	for _, p := range app.plugins {
		if err := p.start(ctx, app); err != nil {
			logf("plugin %s not started: %v", p.name(), err)
			continue
		}
		started = append(started, p)
	}
	app.plugins = started
}

func stopPlugins(app *appContext) {
	for _, p := range app.plugins {
		p.stop()
	}
}
