package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
)

// controller dispatches key events against the current state and hands
// real work to the coordinator's background workers.
type controller struct {
	app   *appContext
	coord *coordinator
}

var workshopIDRe = regexp.MustCompile(`^(workshop-)?(\d+)$`)

// handleKey processes one key event. Returns true when the app should
// exit.
func (c *controller) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	snap := c.app.states.snapshot()

	if snap.prompt != promptNone {
		c.handlePromptKey(ctx, snap, ev)
		return false
	}
	if snap.viewer == viewerLogs {
		c.handleLogViewerKey(snap, ev)
		return false
	}
	if snap.viewer == viewerMods {
		c.handleModsViewerKey(ctx, snap, ev)
		return false
	}
	if snap.viewer == viewerSettings {
		c.handleSettingsViewerKey(ctx, snap, ev)
		return false
	}

	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEsc:
		return c.requestExit()
	case tcell.KeyUp:
		c.moveVertical(-1)
	case tcell.KeyDown:
		c.moveVertical(1)
	case tcell.KeyLeft:
		c.moveHorizontal(-1)
	case tcell.KeyRight:
		c.moveHorizontal(1)
	case tcell.KeyEnter:
		c.executeSelected(ctx, snap)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return c.requestExit()
		case 'e', 'E':
			c.toggleEnable(ctx, snap)
		case 'c', 'C':
			c.openPrompt(promptChat)
		case 't', 'T':
			c.openPrompt(promptToken)
		case 'm', 'M':
			c.openModsViewer(ctx)
		case 's', 'S':
			c.openSettingsViewer()
		case 'l', 'L':
			c.openLogViewer(ctx, snap)
		case 'u', 'U':
			c.runGlobalUpdate(ctx, snap)
		case 'r', 'R':
			c.forceRefresh()
		case 'j', 'J':
			c.moveVertical(1)
		case 'k', 'K':
			c.moveVertical(-1)
		}
	}
	return false
}

func (c *controller) requestExit() bool {
	c.app.bus.publish(event{kind: eventExitRequested})
	return true
}

// moveVertical walks the shard list; moving below the last shard drops
// into the global action grid and moving above the grid's first row
// climbs back out.
func (c *controller) moveVertical(delta int) {
	c.app.states.mutate(func(s *appState) {
		if s.globalIndex >= 0 {
			next := s.globalIndex + delta*globalCols
			if next < 0 {
				s.globalIndex = -1
				return
			}
			if next < len(globalActions) {
				s.globalIndex = next
			}
			return
		}
		next := s.shardIndex + delta
		if next < 0 {
			s.shardIndex = 0
			return
		}
		if next >= len(s.shards) {
			s.globalIndex = 0
			return
		}
		s.shardIndex = next
	})
}

func (c *controller) moveHorizontal(delta int) {
	c.app.states.mutate(func(s *appState) {
		if s.globalIndex >= 0 {
			s.globalIndex = clampInt(s.globalIndex+delta, 0, len(globalActions)-1)
			return
		}
		n := len(shardActions)
		s.actionIndex = ((s.actionIndex+delta)%n + n) % n
	})
}

// executeSelected runs the highlighted shard or global action. A single
// in-flight action at a time: the working flag gates dispatch here, not
// at the systemd layer.
func (c *controller) executeSelected(ctx context.Context, snap appState) {
	if snap.working {
		c.app.states.setInfo("busy: previous action still running")
		return
	}
	if snap.globalIndex >= 0 {
		c.executeGlobal(ctx, snap.globalIndex)
		return
	}
	if snap.shardIndex >= len(snap.shards) {
		return
	}
	name := snap.shards[snap.shardIndex].name
	action := shardActions[snap.actionIndex]
	if action == "logs" {
		c.openLogViewer(ctx, snap)
		return
	}
	c.coord.runInBackground(ctx, func(wctx context.Context) {
		ok, _, errText := controlShard(wctx, name, action)
		if !ok {
			c.app.states.setError(fmt.Sprintf("%s %s: %s", action, name, errText))
			return
		}
		c.app.states.setInfo(fmt.Sprintf("%s %s: ok", action, name))
	})
}

func (c *controller) executeGlobal(ctx context.Context, index int) {
	if index < 0 || index >= len(globalActions) {
		return
	}
	label := globalActions[index]
	if label == "UPDATE" {
		c.coord.runInBackground(ctx, func(wctx context.Context) {
			ok, msg := runUpdater(wctx)
			if !ok {
				c.app.states.setError(msg)
				return
			}
			c.app.states.setInfo(msg)
		})
		return
	}
	action := strings.ToLower(strings.TrimSuffix(label, " ALL"))
	c.coord.runInBackground(ctx, func(wctx context.Context) {
		names := shardNames(loadShards(wctx))
		ok, _, errText := controlShards(wctx, action, names)
		if !ok {
			c.app.states.setError(fmt.Sprintf("%s all: %s", action, errText))
			return
		}
		c.app.states.setInfo(fmt.Sprintf("%s all: ok", action))
	})
}

func (c *controller) toggleEnable(ctx context.Context, snap appState) {
	if snap.working {
		c.app.states.setInfo("busy: previous action still running")
		return
	}
	if snap.shardIndex >= len(snap.shards) || snap.globalIndex >= 0 {
		return
	}
	sh := snap.shards[snap.shardIndex]
	action := "enable"
	if sh.enabled {
		action = "disable"
	}
	c.coord.runInBackground(ctx, func(wctx context.Context) {
		ok, _, errText := controlShard(wctx, sh.name, action)
		if !ok {
			c.app.states.setError(fmt.Sprintf("%s %s: %s", action, sh.name, errText))
			return
		}
		c.app.states.setInfo(fmt.Sprintf("%s %s: ok", action, sh.name))
	})
}

func (c *controller) runGlobalUpdate(ctx context.Context, snap appState) {
	if snap.working {
		c.app.states.setInfo("busy: previous action still running")
		return
	}
	c.executeGlobal(ctx, len(globalActions)-1)
}

// forceRefresh zeroes the poll stamps so the next coordinator tick
// refreshes everything.
func (c *controller) forceRefresh() {
	c.app.states.mutate(func(s *appState) {
		s.lastShardRefresh = time.Time{}
		s.lastStatusRefresh = time.Time{}
		s.lastChatRead = time.Time{}
	})
}

func (c *controller) openPrompt(kind promptKind) {
	c.app.states.mutate(func(s *appState) {
		s.prompt = kind
		s.promptBuf = nil
	})
}

func (c *controller) openLogViewer(ctx context.Context, snap appState) {
	if len(snap.shards) == 0 || snap.shardIndex >= len(snap.shards) {
		return
	}
	name := snap.shards[snap.shardIndex].name
	c.app.states.mutate(func(s *appState) {
		s.viewer = viewerLogs
		s.viewerShard = name
		s.viewerLines = []string{"loading..."}
		s.viewerScroll = 0
		s.viewerFollow = true
	})
	c.coord.runInBackground(ctx, func(wctx context.Context) {
		lines := journalLogs(wctx, name, c.app.cfg.logLines)
		c.app.states.mutate(func(s *appState) {
			if s.viewer == viewerLogs && s.viewerShard == name {
				s.viewerLines = lines
			}
		})
	})
}

func (c *controller) openModsViewer(ctx context.Context) {
	c.app.states.mutate(func(s *appState) {
		s.viewer = viewerMods
		s.modIndex = 0
		s.modList = nil
	})
	c.reloadMods(ctx)
}

func (c *controller) reloadMods(ctx context.Context) {
	c.coord.runInBackground(ctx, func(context.Context) {
		c.loadModStatuses()
	})
}

func (c *controller) loadModStatuses() {
	mods := listMods(c.app.game(), "Master")
	statuses := collectModStatus(c.app.game(), mods)
	c.app.states.mutate(func(s *appState) {
		s.modList = statuses
		if s.modIndex >= len(statuses) {
			s.modIndex = 0
		}
	})
	c.app.bus.publish(event{kind: eventModListUpdate, data: statuses})
}

var settingsBranches = []string{"main", "beta"}

// openSettingsViewer lists the selectable clusters (auto first, then
// every detected dedicated cluster) with the active cluster and branch
// preselected.
func (c *controller) openSettingsViewer() {
	g := c.app.game()
	clusters := append([]string{"auto"}, availableClusters(g.dstDir)...)
	clusterIdx := 0
	for i, name := range clusters {
		if name == g.clusterName {
			clusterIdx = i
		}
	}
	branchIdx := 0
	for i, name := range settingsBranches {
		if name == g.branch {
			branchIdx = i
		}
	}
	c.app.states.mutate(func(s *appState) {
		s.viewer = viewerSettings
		s.settingsClusters = clusters
		s.settingsCluster = clusterIdx
		s.settingsBranch = branchIdx
	})
}

func (c *controller) handleSettingsViewerKey(ctx context.Context, snap appState, ev *tcell.EventKey) {
	moveCluster := func(delta int) {
		c.app.states.mutate(func(s *appState) {
			s.settingsCluster = clampInt(s.settingsCluster+delta, 0, len(s.settingsClusters)-1)
		})
	}
	moveBranch := func(delta int) {
		c.app.states.mutate(func(s *appState) {
			s.settingsBranch = clampInt(s.settingsBranch+delta, 0, len(settingsBranches)-1)
		})
	}
	switch ev.Key() {
	case tcell.KeyEsc:
		c.closeViewer()
	case tcell.KeyUp:
		moveCluster(-1)
	case tcell.KeyDown:
		moveCluster(1)
	case tcell.KeyLeft:
		moveBranch(-1)
	case tcell.KeyRight:
		moveBranch(1)
	case tcell.KeyEnter:
		c.applySettings(ctx, snap)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q', 's', 'S':
			c.closeViewer()
		case 'j', 'J':
			moveCluster(1)
		case 'k', 'K':
			moveCluster(-1)
		case 'h', 'H':
			moveBranch(-1)
		case 'l', 'L':
			moveBranch(1)
		}
	}
}

// applySettings writes the selected cluster and branch into the config
// file and reloads the effective game configuration.
func (c *controller) applySettings(ctx context.Context, snap appState) {
	if snap.working {
		c.app.states.setInfo("busy: previous action still running")
		return
	}
	if len(snap.settingsClusters) == 0 {
		return
	}
	cluster := snap.settingsClusters[clampInt(snap.settingsCluster, 0, len(snap.settingsClusters)-1)]
	branch := settingsBranches[clampInt(snap.settingsBranch, 0, len(settingsBranches)-1)]
	c.closeViewer()
	c.coord.runInBackground(ctx, func(context.Context) {
		path := gameConfigPath()
		if err := setConfigValue(path, "CLUSTER_NAME", cluster); err != nil {
			c.app.states.setError("settings: " + err.Error())
			return
		}
		if err := setConfigValue(path, "BRANCH", branch); err != nil {
			c.app.states.setError("settings: " + err.Error())
			return
		}
		c.app.setGame(loadGameConfig())
		c.app.states.setInfo("using cluster " + c.app.game().clusterName + " on " + branch)
	})
}

func (c *controller) closeViewer() {
	c.app.states.mutate(func(s *appState) {
		s.viewer = viewerNone
		s.viewerLines = nil
	})
}

func (c *controller) handleLogViewerKey(snap appState, ev *tcell.EventKey) {
	scroll := func(delta int) {
		c.app.states.mutate(func(s *appState) {
			maxStart := maxInt(0, len(s.viewerLines)-1)
			current := s.viewerScroll
			if s.viewerFollow {
				current = maxStart
			}
			s.viewerScroll = clampInt(current+delta, 0, maxStart)
			s.viewerFollow = s.viewerScroll == maxStart
		})
	}
	switch ev.Key() {
	case tcell.KeyEsc:
		c.closeViewer()
	case tcell.KeyUp:
		scroll(-1)
	case tcell.KeyDown:
		scroll(1)
	case tcell.KeyPgUp:
		scroll(-10)
	case tcell.KeyPgDn:
		scroll(10)
	case tcell.KeyHome:
		c.app.states.mutate(func(s *appState) {
			s.viewerScroll = 0
			s.viewerFollow = false
		})
	case tcell.KeyEnd:
		c.app.states.mutate(func(s *appState) { s.viewerFollow = true })
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			c.closeViewer()
		case 'j', 'J':
			scroll(1)
		case 'k', 'K':
			scroll(-1)
		case 'g':
			c.app.states.mutate(func(s *appState) {
				s.viewerScroll = 0
				s.viewerFollow = false
			})
		case 'G':
			c.app.states.mutate(func(s *appState) { s.viewerFollow = true })
		}
	}
}

func (c *controller) handleModsViewerKey(ctx context.Context, snap appState, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEsc:
		c.closeViewer()
	case tcell.KeyUp:
		c.app.states.mutate(func(s *appState) { s.modIndex = maxInt(0, s.modIndex-1) })
	case tcell.KeyDown:
		c.app.states.mutate(func(s *appState) {
			if s.modIndex < len(s.modList)-1 {
				s.modIndex++
			}
		})
	case tcell.KeyEnter:
		c.toggleSelectedMod(ctx, snap)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			c.closeViewer()
		case 'a', 'A':
			c.openPrompt(promptAddMod)
		case 'd', 'D':
			c.resetSelectedMod(ctx, snap)
		case 'v', 'V':
			c.reloadMods(ctx)
		case 'j', 'J':
			c.app.states.mutate(func(s *appState) {
				if s.modIndex < len(s.modList)-1 {
					s.modIndex++
				}
			})
		case 'k', 'K':
			c.app.states.mutate(func(s *appState) { s.modIndex = maxInt(0, s.modIndex-1) })
		}
	}
}

func (c *controller) toggleSelectedMod(ctx context.Context, snap appState) {
	if snap.working || snap.modIndex >= len(snap.modList) {
		return
	}
	m := snap.modList[snap.modIndex]
	c.coord.runInBackground(ctx, func(context.Context) {
		if !toggleMod(c.app.game(), m.id, !m.enabled, "Master") {
			c.app.states.setError("toggle failed for " + m.id)
			return
		}
		c.app.states.setInfo("toggled " + m.id)
		c.loadModStatuses()
	})
}

func (c *controller) resetSelectedMod(ctx context.Context, snap appState) {
	if snap.working || snap.modIndex >= len(snap.modList) {
		return
	}
	m := snap.modList[snap.modIndex]
	c.coord.runInBackground(ctx, func(context.Context) {
		if !resetModToDefault(c.app.game(), m.id, "Master") {
			c.app.states.setError("reset failed for " + m.id)
			return
		}
		c.app.states.setInfo("reset " + m.id + " to defaults")
		c.loadModStatuses()
	})
}

func (c *controller) handlePromptKey(ctx context.Context, snap appState, ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEsc, tcell.KeyCtrlC:
		c.app.states.mutate(func(s *appState) {
			s.prompt = promptNone
			s.promptBuf = nil
		})
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		c.app.states.mutate(func(s *appState) {
			if len(s.promptBuf) > 0 {
				s.promptBuf = s.promptBuf[:len(s.promptBuf)-1]
			}
		})
	case tcell.KeyCtrlU:
		c.app.states.mutate(func(s *appState) { s.promptBuf = nil })
	case tcell.KeyEnter:
		text := strings.TrimSpace(string(snap.promptBuf))
		kind := snap.prompt
		c.app.states.mutate(func(s *appState) {
			s.prompt = promptNone
			s.promptBuf = nil
		})
		c.submitPrompt(ctx, kind, text)
	case tcell.KeyRune:
		if r := ev.Rune(); r != 0 {
			c.app.states.mutate(func(s *appState) { s.promptBuf = append(s.promptBuf, r) })
		}
	}
}

func (c *controller) submitPrompt(ctx context.Context, kind promptKind, text string) {
	if text == "" {
		return
	}
	switch kind {
	case promptChat:
		if c.app.states.working() {
			c.app.states.setInfo("busy: previous action still running")
			return
		}
		c.coord.runInBackground(ctx, func(wctx context.Context) {
			ok, msg := sendChatMessage(wctx, "Master", text)
			if !ok {
				c.app.states.setError(msg)
				return
			}
			c.app.states.setInfo("announced: " + truncate(text, 40))
		})
	case promptAddMod:
		m := workshopIDRe.FindStringSubmatch(text)
		if m == nil {
			c.app.states.setError("invalid workshop id: " + text)
			return
		}
		id := "workshop-" + m[2]
		if c.app.states.working() {
			c.app.states.setInfo("busy: previous action still running")
			return
		}
		c.coord.runInBackground(ctx, func(context.Context) {
			if !addMod(c.app.game(), id, "Master") {
				c.app.states.setError("add failed for " + id)
				return
			}
			c.app.states.setInfo("added " + id)
			c.loadModStatuses()
		})
	case promptToken:
		if err := c.app.game().writeClusterToken(text); err != nil {
			c.app.states.setError("token: " + err.Error())
			return
		}
		c.app.states.setInfo("cluster token updated")
	}
}
