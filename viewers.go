package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

func drawLogViewer(screen tcell.Screen, width, top, bottom int, state appState, body, head tcell.Style) {
	drawBox(screen, 0, top, width, bottom, body)
	title := fmt.Sprintf(" LOGS: %s ", state.viewerShard)
	drawText(screen, 2, top, width-4, title, head)

	contentHeight := bottom - top - 2
	if contentHeight <= 0 {
		return
	}
	start := viewerStart(state, contentHeight)
	for row := 0; row < contentHeight; row++ {
		idx := start + row
		if idx >= len(state.viewerLines) {
			break
		}
		drawAnsiText(screen, 1, top+1+row, width-2, state.viewerLines[idx], body)
	}
}

func viewerStart(state appState, contentHeight int) int {
	maxStart := 0
	if len(state.viewerLines) > contentHeight {
		maxStart = len(state.viewerLines) - contentHeight
	}
	if state.viewerFollow {
		return maxStart
	}
	return clampInt(state.viewerScroll, 0, maxStart)
}

func drawModsViewer(screen tcell.Screen, width, top, bottom int, state appState, body, head tcell.Style) {
	drawBox(screen, 0, top, width, bottom, body)
	drawText(screen, 2, top, width-4, " MODS MANAGEMENT ", head)

	w := width - 2
	selStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	errStyle := tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorBlack)

	if len(state.modList) == 0 {
		drawText(screen, 1, top+1, w, "no mods in modoverrides.lua (press a to add one)", body)
		return
	}
	for i, m := range state.modList {
		y := top + 1 + i
		if y >= bottom-1 {
			break
		}
		enabled := "[ ]"
		if m.enabled {
			enabled = "[x]"
		}
		loaded := " "
		if m.loadedInGame {
			loaded = "L"
		}
		valid := " "
		if !m.configValid {
			valid = "!"
		}
		line := fmt.Sprintf("%s %s%s %-40s %s", enabled, loaded, valid, truncate(m.name, 40), m.id)
		if m.errorCount > 0 {
			line += fmt.Sprintf("  errors:%d", m.errorCount)
		}
		style := body
		if i == state.modIndex {
			style = selStyle
		} else if m.errorCount > 0 || !m.configValid {
			style = errStyle
		}
		drawText(screen, 1, y, w, truncate(line, w), style)
	}

	// Detail lines for the selected mod.
	if state.modIndex >= 0 && state.modIndex < len(state.modList) {
		m := state.modList[state.modIndex]
		if m.lastError != "" && bottom-2 > top+1+len(state.modList) {
			drawText(screen, 1, bottom-2, w, truncate("last error: "+m.lastError, w), errStyle)
		}
		detail := fmt.Sprintf("%d options declared", m.optionCount)
		if m.configText != "" {
			detail += "  " + m.configText
		}
		if bottom-3 > top+1+len(state.modList) {
			drawText(screen, 1, bottom-3, w, truncate(detail, w), body)
		}
	}
}

func drawSettingsViewer(screen tcell.Screen, width, top, bottom int, state appState, body, head tcell.Style) {
	drawBox(screen, 0, top, width, bottom, body)
	drawText(screen, 2, top, width-4, " SETTINGS ", head)

	w := width - 2
	selStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)

	drawText(screen, 1, top+1, w, "Cluster:", body)
	row := top + 2
	for i, name := range state.settingsClusters {
		if row >= bottom-3 {
			break
		}
		marker := "  "
		style := body
		if i == state.settingsCluster {
			marker = "> "
			style = selStyle
		}
		line := marker + name
		if name == "auto" {
			line += " (auto-detect)"
		}
		drawText(screen, 1, row, w, truncate(line, w), style)
		row++
	}

	drawText(screen, 1, bottom-3, w, "Branch:", body)
	x := 9
	for i, name := range settingsBranches {
		style := body
		label := " " + name + " "
		if i == state.settingsBranch {
			style = selStyle
			label = "[" + name + "]"
		}
		drawText(screen, x, bottom-3, len(label), label, style)
		x += len(label) + 2
	}
	drawText(screen, 1, bottom-2, w, "Enter applies the selection and reloads the cluster.", body)
}
