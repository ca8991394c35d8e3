package main

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
)

var shardActions = []string{"start", "stop", "restart", "logs"}

var globalActions = []string{
	"START ALL", "STOP ALL",
	"RESTART ALL", "ENABLE ALL",
	"DISABLE ALL", "UPDATE",
}

const globalCols = 2

func draw(screen tcell.Screen, state appState) {
	screen.Clear()
	width, height := screen.Size()
	if width <= 0 || height <= 0 {
		screen.Show()
		return
	}

	defStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
	if width < 40 || height < 12 {
		drawCentered(screen, 0, 0, width, height, defStyle, "terminal too small")
		screen.Show()
		return
	}

	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorBlack).Bold(true)
	statusStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorLightGray)

	drawHeader(screen, width, state, titleStyle)

	bodyTop := 1
	bodyBottom := height - 1

	switch state.viewer {
	case viewerLogs:
		drawLogViewer(screen, width, bodyTop, bodyBottom, state, defStyle, titleStyle)
	case viewerMods:
		drawModsViewer(screen, width, bodyTop, bodyBottom, state, defStyle, titleStyle)
	case viewerSettings:
		drawSettingsViewer(screen, width, bodyTop, bodyBottom, state, defStyle, titleStyle)
	default:
		drawDashboard(screen, width, bodyTop, bodyBottom, state, defStyle, titleStyle)
	}

	if state.prompt != promptNone {
		drawPromptOverlay(screen, width, height, state)
	}

	drawFooter(screen, width, height-1, state, statusStyle)
	screen.Show()
}

func drawHeader(screen tcell.Screen, width int, state appState, style tcell.Style) {
	title := "DST MANAGER"
	if state.working {
		title += " [WAITING...]"
	}
	x := (width - len(title)) / 2
	if x < 0 {
		x = 0
	}
	drawText(screen, x, 0, width-x, title, style)
}

func drawDashboard(screen tcell.Screen, width, top, bottom int, state appState, body, head tcell.Style) {
	leftWidth := width / 2
	if leftWidth > 46 {
		leftWidth = 46
	}

	statusHeight := 7 + len(state.status.players)
	maxStatus := (bottom - top) / 2
	if statusHeight > maxStatus {
		statusHeight = maxStatus
	}
	if statusHeight < 7 {
		statusHeight = 7
	}

	globalRows := (len(globalActions) + globalCols - 1) / globalCols
	globalHeight := globalRows + 2
	shardsTop := top + statusHeight
	shardsBottom := bottom - globalHeight
	if shardsBottom <= shardsTop+2 {
		shardsBottom = shardsTop + 3
	}

	drawWorldStatus(screen, 0, top, leftWidth, shardsTop, state, body, head)
	drawShardsPanel(screen, 0, shardsTop, leftWidth, shardsBottom, state, body, head)
	drawGlobalPanel(screen, 0, shardsBottom, leftWidth, bottom, state, body, head)
	drawChatPanel(screen, leftWidth, top, width, bottom, state, body, head)
}

func drawWorldStatus(screen tcell.Screen, x0, y0, x1, y1 int, state appState, body, head tcell.Style) {
	drawBox(screen, x0, y0, x1, y1, body)
	drawText(screen, x0+2, y0, x1-x0-4, " WORLD STATUS ", head)

	w := x1 - x0 - 2
	st := state.status
	lines := []string{
		fmt.Sprintf("Season: %s", st.season),
		fmt.Sprintf("Day: %s (%s left)", st.day, st.daysLeft),
		fmt.Sprintf("Phase: %s", st.phase),
		fmt.Sprintf("Players: %d", len(st.players)),
	}
	for _, p := range st.players {
		lines = append(lines, fmt.Sprintf("  %s <%s>", p.name, p.character))
	}
	for i, line := range lines {
		y := y0 + 1 + i
		if y >= y1-1 {
			break
		}
		drawText(screen, x0+1, y, w, truncate(line, w), body)
	}
}

func drawShardsPanel(screen tcell.Screen, x0, y0, x1, y1 int, state appState, body, head tcell.Style) {
	drawBox(screen, x0, y0, x1, y1, body)
	drawText(screen, x0+2, y0, x1-x0-4, " SHARDS ", head)

	w := x1 - x0 - 2
	selStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	if len(state.shards) == 0 {
		drawText(screen, x0+1, y0+1, w, "no shards configured (shards.conf)", body)
		return
	}
	for i, sh := range state.shards {
		y := y0 + 1 + i
		if y >= y1-1 {
			break
		}
		marker := "·"
		if sh.running {
			marker = "●"
		}
		enabled := " "
		if sh.enabled {
			enabled = "e"
		}
		line := fmt.Sprintf("%s%s %-10s", marker, enabled, sh.name)
		style := body
		if i == state.shardIndex && state.globalIndex < 0 {
			style = selStyle
			line += " [" + shardActions[state.actionIndex] + "]"
		}
		drawText(screen, x0+1, y, w, truncate(line, w), style)
	}
}

func drawGlobalPanel(screen tcell.Screen, x0, y0, x1, y1 int, state appState, body, head tcell.Style) {
	drawBox(screen, x0, y0, x1, y1, body)
	drawText(screen, x0+2, y0, x1-x0-4, " GLOBAL ", head)

	selStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	cellWidth := (x1 - x0 - 2) / globalCols
	for i, action := range globalActions {
		col := i % globalCols
		row := i / globalCols
		y := y0 + 1 + row
		if y >= y1-1 {
			break
		}
		style := body
		if state.globalIndex == i {
			style = selStyle
		}
		drawText(screen, x0+1+col*cellWidth, y, cellWidth-1, truncate(" "+action, cellWidth-1), style)
	}
}

func drawChatPanel(screen tcell.Screen, x0, y0, x1, y1 int, state appState, body, head tcell.Style) {
	drawBox(screen, x0, y0, x1, y1, body)
	drawText(screen, x0+2, y0, x1-x0-4, " CHAT ", head)

	w := x1 - x0 - 2
	contentHeight := y1 - y0 - 2
	if contentHeight <= 0 {
		return
	}
	lines := lastN(state.chatLines, contentHeight)
	for i, line := range lines {
		drawText(screen, x0+1, y0+1+i, w, truncate(line, w), body)
	}
}

func drawFooter(screen tcell.Screen, width, y int, state appState, style tcell.Style) {
	if y < 0 || width <= 0 {
		return
	}
	label := "↑↓:select ←→:action enter:run e:enable c:chat m:mods l:logs s:settings u:update t:token r:refresh q:quit"
	switch {
	case state.prompt == promptChat:
		label = "announce: type message | Enter send | Esc cancel"
	case state.prompt == promptAddMod:
		label = "add mod: workshop id (digits) | Enter add | Esc cancel"
	case state.prompt == promptToken:
		label = "cluster token: paste token | Enter save | Esc cancel"
	case state.viewer == viewerLogs:
		label = "logs: j/k scroll | g/G top/bottom | Esc back"
	case state.viewer == viewerMods:
		label = "mods: ↑↓ select | enter toggle | a add | d defaults | Esc back"
	case state.viewer == viewerSettings:
		label = "settings: ↑↓ cluster | ←→ branch | enter apply | Esc back"
	}
	if state.lastErr != "" {
		label = "error: " + state.lastErr
	} else if state.lastInfo != "" {
		label = state.lastInfo
	}
	if len(label) < width {
		label += strings.Repeat(" ", width-len(label))
	}
	drawText(screen, 0, y, width, label, style)
}

func drawPromptOverlay(screen tcell.Screen, width, height int, state appState) {
	if width < 10 || height < 6 {
		return
	}
	overlayHeight := maxInt(4, height/4)
	y0 := height - 1 - overlayHeight
	y1 := height - 1

	boxStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray)
	headStyle := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorLightGray).Bold(true)

	drawBox(screen, 0, y0, width, y1, boxStyle)
	title := "Input"
	switch state.prompt {
	case promptChat:
		title = "Announce to server"
	case promptAddMod:
		title = "Add mod (workshop id)"
	case promptToken:
		title = "Cluster token"
	}
	drawText(screen, 1, y0+1, width-2, title+" | Enter confirm | Esc cancel", headStyle)
	drawText(screen, 1, y0+2, width-2, "> "+string(state.promptBuf), boxStyle)
}

func drawBox(screen tcell.Screen, x0, y0, x1, y1 int, style tcell.Style) {
	w := x1 - x0
	h := y1 - y0
	if w <= 1 || h <= 1 {
		return
	}
	for x := x0; x < x1; x++ {
		screen.SetContent(x, y0, '-', nil, style)
		screen.SetContent(x, y1-1, '-', nil, style)
	}
	for y := y0; y < y1; y++ {
		screen.SetContent(x0, y, '|', nil, style)
		screen.SetContent(x1-1, y, '|', nil, style)
	}
	screen.SetContent(x0, y0, '+', nil, style)
	screen.SetContent(x1-1, y0, '+', nil, style)
	screen.SetContent(x0, y1-1, '+', nil, style)
	screen.SetContent(x1-1, y1-1, '+', nil, style)
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	if width <= 0 {
		return
	}
	runes := []rune(text)
	if len(runes) > width {
		runes = runes[:width]
	}
	for i := 0; i < width; i++ {
		ch := ' '
		if i < len(runes) {
			ch = runes[i]
		}
		screen.SetContent(x+i, y, ch, nil, style)
	}
}

func drawCentered(screen tcell.Screen, x0, y0, width, height int, style tcell.Style, text string) {
	if width <= 0 || height <= 0 {
		return
	}
	y := y0 + height/2
	x := x0 + (width-len(text))/2
	if x < x0 {
		x = x0
	}
	drawText(screen, x, y, width-(x-x0), text, style)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
