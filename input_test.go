package main

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
)

func newTestController(t *testing.T) *controller {
	t.Helper()
	app := &appContext{
		cfg:    config{chatLines: 15, logLines: 100, game: testGame(t)},
		states: newStateManager(),
		bus:    newEventBus(),
	}
	return &controller{app: app, coord: newCoordinator(app)}
}

func keyEvent(key tcell.Key, r rune) *tcell.EventKey {
	return tcell.NewEventKey(key, r, tcell.ModNone)
}

// waitForTask runs fn and blocks until the background task it starts
// publishes its end event.
func waitForTask(t *testing.T, c *controller, fn func()) {
	t.Helper()
	done := make(chan struct{}, 1)
	id := c.app.bus.subscribe(eventTaskEnd, func(event) { done <- struct{}{} })
	t.Cleanup(func() { c.app.bus.unsubscribe(eventTaskEnd, id) })
	fn()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("background task never finished")
	}
}

func TestMoveVerticalIntoGlobalGrid(t *testing.T) {
	c := newTestController(t)
	c.app.states.mutate(func(s *appState) {
		s.shards = []shard{{name: "Master"}, {name: "Caves"}}
		s.globalIndex = -1
	})

	c.moveVertical(1)
	if got := c.app.states.snapshot().shardIndex; got != 1 {
		t.Fatalf("shardIndex = %d", got)
	}
	c.moveVertical(1)
	snap := c.app.states.snapshot()
	if snap.globalIndex != 0 {
		t.Fatalf("globalIndex = %d", snap.globalIndex)
	}
	c.moveVertical(1)
	if got := c.app.states.snapshot().globalIndex; got != globalCols {
		t.Fatalf("globalIndex = %d", got)
	}
	c.moveVertical(-1)
	c.moveVertical(-1)
	snap = c.app.states.snapshot()
	if snap.globalIndex != -1 || snap.shardIndex != 1 {
		t.Fatalf("snap = global %d shard %d", snap.globalIndex, snap.shardIndex)
	}
}

func TestMoveHorizontalWrapsActions(t *testing.T) {
	c := newTestController(t)
	c.app.states.mutate(func(s *appState) {
		s.shards = []shard{{name: "Master"}}
		s.globalIndex = -1
	})
	c.moveHorizontal(-1)
	if got := c.app.states.snapshot().actionIndex; got != len(shardActions)-1 {
		t.Fatalf("actionIndex = %d", got)
	}
	c.moveHorizontal(1)
	if got := c.app.states.snapshot().actionIndex; got != 0 {
		t.Fatalf("actionIndex = %d", got)
	}
}

func TestExecuteSelectedRefusedWhileBusy(t *testing.T) {
	c := newTestController(t)
	stubSystemctl(t, func(_ context.Context, _ ...string) (bool, string, string) {
		t.Fatalf("action dispatched while busy")
		return false, "", ""
	})
	c.app.states.mutate(func(s *appState) {
		s.shards = []shard{{name: "Master"}}
		s.globalIndex = -1
		s.working = true
	})

	c.executeSelected(context.Background(), c.app.states.snapshot())
	snap := c.app.states.snapshot()
	if !strings.Contains(snap.lastInfo, "busy") {
		t.Fatalf("lastInfo = %q", snap.lastInfo)
	}
}

func TestExecuteSelectedRunsShardAction(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c := newTestController(t)
	var gotArgs []string
	stubSystemctl(t, func(_ context.Context, args ...string) (bool, string, string) {
		if args[0] == "restart" {
			gotArgs = args
		}
		return true, "", ""
	})
	c.app.states.mutate(func(s *appState) {
		s.shards = []shard{{name: "Master"}}
		s.globalIndex = -1
		s.actionIndex = 2 // restart
	})

	waitForTask(t, c, func() {
		c.executeSelected(context.Background(), c.app.states.snapshot())
	})

	if len(gotArgs) != 2 || gotArgs[1] != "dontstarve@Master.service" {
		t.Fatalf("args = %v", gotArgs)
	}
	if got := c.app.states.snapshot().lastInfo; !strings.Contains(got, "restart Master") {
		t.Fatalf("lastInfo = %q", got)
	}
}

func TestPromptTyping(t *testing.T) {
	c := newTestController(t)
	c.openPrompt(promptChat)
	ctx := context.Background()

	for _, r := range "hi!" {
		snap := c.app.states.snapshot()
		c.handlePromptKey(ctx, snap, keyEvent(tcell.KeyRune, r))
	}
	if got := string(c.app.states.snapshot().promptBuf); got != "hi!" {
		t.Fatalf("buffer = %q", got)
	}

	c.handlePromptKey(ctx, c.app.states.snapshot(), keyEvent(tcell.KeyBackspace2, 0))
	if got := string(c.app.states.snapshot().promptBuf); got != "hi" {
		t.Fatalf("buffer after backspace = %q", got)
	}

	c.handlePromptKey(ctx, c.app.states.snapshot(), keyEvent(tcell.KeyEsc, 0))
	if got := c.app.states.snapshot().prompt; got != promptNone {
		t.Fatalf("prompt = %v", got)
	}
}

func TestPromptChatSubmits(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c := newTestController(t)
	var gotCmd string
	stubConsoleCommand(t, func(_ context.Context, shardName, command string) (bool, string) {
		if shardName != "Master" {
			t.Fatalf("shard = %q", shardName)
		}
		gotCmd = command
		return true, "ok"
	})
	stubSystemctl(t, func(_ context.Context, _ ...string) (bool, string, string) {
		return true, "", ""
	})

	ctx := context.Background()
	c.openPrompt(promptChat)
	for _, r := range "hello" {
		c.handlePromptKey(ctx, c.app.states.snapshot(), keyEvent(tcell.KeyRune, r))
	}
	waitForTask(t, c, func() {
		c.handlePromptKey(ctx, c.app.states.snapshot(), keyEvent(tcell.KeyEnter, 0))
	})

	if gotCmd != `c_announce("hello")` {
		t.Fatalf("command = %q", gotCmd)
	}
	if got := c.app.states.snapshot().prompt; got != promptNone {
		t.Fatalf("prompt still open")
	}
}

func TestPromptAddModValidatesID(t *testing.T) {
	c := newTestController(t)
	ctx := context.Background()

	c.submitPrompt(ctx, promptAddMod, "not-a-mod")
	if got := c.app.states.snapshot().lastErr; !strings.Contains(got, "invalid workshop id") {
		t.Fatalf("lastErr = %q", got)
	}
}

func TestWorkshopIDRe(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"123456", "123456"},
		{"workshop-123456", "123456"},
		{"workshop-", ""},
		{"abc", ""},
	}
	for _, c := range cases {
		m := workshopIDRe.FindStringSubmatch(c.in)
		got := ""
		if m != nil {
			got = m[2]
		}
		if got != c.want {
			t.Fatalf("workshopIDRe(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLogViewerScroll(t *testing.T) {
	c := newTestController(t)
	c.app.states.mutate(func(s *appState) {
		s.viewer = viewerLogs
		s.viewerLines = make([]string, 100)
		s.viewerFollow = true
	})

	c.handleLogViewerKey(c.app.states.snapshot(), keyEvent(tcell.KeyRune, 'k'))
	snap := c.app.states.snapshot()
	if snap.viewerFollow {
		t.Fatalf("still following after scroll up")
	}
	if snap.viewerScroll != 98 {
		t.Fatalf("viewerScroll = %d", snap.viewerScroll)
	}

	c.handleLogViewerKey(snap, keyEvent(tcell.KeyRune, 'G'))
	if !c.app.states.snapshot().viewerFollow {
		t.Fatalf("G did not re-enable follow")
	}

	c.handleLogViewerKey(c.app.states.snapshot(), keyEvent(tcell.KeyEsc, 0))
	if got := c.app.states.snapshot().viewer; got != viewerNone {
		t.Fatalf("viewer = %v", got)
	}
}

func TestOpenSettingsViewer(t *testing.T) {
	c := newTestController(t)
	makeCluster(t, c.app.game().dstDir, "Alpha")

	c.openSettingsViewer()
	snap := c.app.states.snapshot()
	if snap.viewer != viewerSettings {
		t.Fatalf("viewer = %v", snap.viewer)
	}
	if !reflect.DeepEqual(snap.settingsClusters, []string{"auto", "Alpha"}) {
		t.Fatalf("clusters = %v", snap.settingsClusters)
	}
	// TestCluster is not on disk, so auto stays preselected.
	if snap.settingsCluster != 0 || snap.settingsBranch != 0 {
		t.Fatalf("selection = cluster %d branch %d", snap.settingsCluster, snap.settingsBranch)
	}
}

func TestApplySettingsRewritesConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c := newTestController(t)
	stubSystemctl(t, func(_ context.Context, _ ...string) (bool, string, string) {
		return true, "", ""
	})
	makeCluster(t, c.app.game().dstDir, "Alpha")

	ctx := context.Background()
	c.openSettingsViewer()
	c.handleSettingsViewerKey(ctx, c.app.states.snapshot(), keyEvent(tcell.KeyDown, 0))
	c.handleSettingsViewerKey(ctx, c.app.states.snapshot(), keyEvent(tcell.KeyRight, 0))
	waitForTask(t, c, func() {
		c.handleSettingsViewerKey(ctx, c.app.states.snapshot(), keyEvent(tcell.KeyEnter, 0))
	})

	values, err := readGameConfigFile(gameConfigPath())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if values["CLUSTER_NAME"] != "Alpha" || values["BRANCH"] != "beta" {
		t.Fatalf("values = %v", values)
	}
	g := c.app.game()
	if g.clusterName != "Alpha" || g.branch != "beta" {
		t.Fatalf("game = %+v", g)
	}
	if got := c.app.states.snapshot().viewer; got != viewerNone {
		t.Fatalf("viewer still open: %v", got)
	}
}

func TestAnnounceRefusedWhileBusy(t *testing.T) {
	c := newTestController(t)
	stubConsoleCommand(t, func(_ context.Context, _, _ string) (bool, string) {
		t.Fatalf("announce dispatched while busy")
		return false, ""
	})
	c.app.states.setWorking(true)

	c.submitPrompt(context.Background(), promptChat, "hello")
	if got := c.app.states.snapshot().lastInfo; !strings.Contains(got, "busy") {
		t.Fatalf("lastInfo = %q", got)
	}
}

func TestQuitPublishesExit(t *testing.T) {
	c := newTestController(t)
	exited := false
	c.app.bus.subscribe(eventExitRequested, func(event) { exited = true })

	if !c.handleKey(context.Background(), keyEvent(tcell.KeyRune, 'q')) {
		t.Fatalf("q did not request exit")
	}
	if !exited {
		t.Fatalf("exit event not published")
	}
}
