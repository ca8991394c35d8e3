package main

import (
	"context"
	"sync"
	"time"
)

const (
	tickInterval          = 100 * time.Millisecond
	shardRefreshInterval  = 2 * time.Second
	statusRefreshInterval = 5 * time.Second
	statusPollInterval    = 15 * time.Second
	chatReadInterval      = 5 * time.Second
	masterOfflineLimit    = 3
)

// appContext bundles what the coordinator, input handlers and plugins
// share.
type appContext struct {
	cfg     config
	states  *stateManager
	bus     *eventBus
	plugins []plugin

	gameMu sync.RWMutex
}

// game returns the current game configuration. The settings screen can
// swap it at runtime, so concurrent readers go through the lock.
func (a *appContext) game() gameConfig {
	a.gameMu.RLock()
	defer a.gameMu.RUnlock()
	return a.cfg.game
}

func (a *appContext) setGame(g gameConfig) {
	a.gameMu.Lock()
	a.cfg.game = g
	a.gameMu.Unlock()
}

// coordinator drives the periodic pollers from a single goroutine and
// hands one-shot actions to short-lived workers.
type coordinator struct {
	app    *appContext
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newCoordinator(app *appContext) *coordinator {
	return &coordinator{app: app}
}

func (c *coordinator) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
}

func (c *coordinator) stop() {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		// A worker stuck in a blocking call outlives the join; process
		// exit reclaims it.
		logf("coordinator stop timed out")
	}
}

// runInBackground executes fn on a worker goroutine, bracketed by busy
// events and followed by a shard refresh. The UI refuses new actions
// while the working flag is set.
func (c *coordinator) runInBackground(ctx context.Context, fn func(context.Context)) {
	app := c.app
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logf("background task panicked: %v", r)
			}
			app.states.setWorking(false)
			app.bus.publish(event{kind: eventTaskEnd})
		}()
		app.bus.publish(event{kind: eventTaskStart})
		app.states.setWorking(true)
		fn(ctx)
		shards := loadShards(ctx)
		app.states.setShards(shards)
		app.bus.publish(event{kind: eventShardRefresh, data: shards})
	}()
}

func (c *coordinator) loop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := time.Now()
		snap := c.app.states.snapshot()

		if now.Sub(snap.lastShardRefresh) > shardRefreshInterval && snap.viewer == viewerNone {
			c.refreshShards(ctx, now)
		}
		if now.Sub(snap.lastStatusRefresh) > statusRefreshInterval {
			c.refreshStatus(now)
		}
		if now.Sub(snap.lastStatusPoll) > statusPollInterval && snap.viewer != viewerLogs && !snap.working {
			c.app.states.mutateQuiet(func(s *appState) { s.lastStatusPoll = now })
			c.pollWorldState(ctx)
		}
		if now.Sub(snap.lastChatRead) > chatReadInterval {
			c.refreshChat(now)
		}

		for _, p := range c.app.plugins {
			p.update(ctx)
		}
	}
}

// pollWorldState fires the open-loop status dump on its own goroutine.
// The inter-command delays add up to seconds per round and must never
// stall the tick loop.
func (c *coordinator) pollWorldState(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		requestStatusUpdate(ctx, "")
	}()
}

func (c *coordinator) refreshShards(ctx context.Context, now time.Time) {
	shards := loadShards(ctx)
	app := c.app

	app.states.mutate(func(s *appState) {
		s.shards = shards
		if s.shardIndex >= len(shards) {
			s.shardIndex = 0
		}
		s.lastShardRefresh = now

		// Three missed polls in a row blank the world status instead of
		// showing stale data for a dead Master.
		if master, ok := findShard(shards, "Master"); ok && master.running {
			s.masterOfflineCount = 0
		} else {
			s.masterOfflineCount++
			if s.masterOfflineCount >= masterOfflineLimit {
				s.status = blankStatus()
			}
		}
	})
	app.bus.publish(event{kind: eventShardRefresh, data: shards})
}

func (c *coordinator) refreshStatus(now time.Time) {
	app := c.app
	status := getServerStatus(app.game(), "")

	app.states.mutateQuiet(func(s *appState) { s.lastStatusRefresh = now })

	snap := app.states.snapshot()
	master, ok := findShard(snap.shards, "Master")
	if !ok || !master.running {
		app.states.requestRedraw()
		return
	}
	app.states.setStatus(status)
	app.bus.publish(event{kind: eventStatusUpdate, data: status})
}

func (c *coordinator) refreshChat(now time.Time) {
	app := c.app
	lines := chatLogs(app.game(), app.cfg.chatLines)
	app.states.mutateQuiet(func(s *appState) {
		s.chatLines = lines
		s.lastChatRead = now
		s.needRedraw = true
	})
	app.bus.publish(event{kind: eventChatMessage, data: lines})
}
