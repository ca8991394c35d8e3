package main

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

// journalctl output may carry SGR colour codes; the log viewer renders
// the common subset and strips what it does not understand.

type ansiState struct {
	style tcell.Style
}

func drawAnsiText(screen tcell.Screen, x, y, width int, text string, baseStyle tcell.Style) {
	if width <= 0 {
		return
	}
	state := ansiState{style: baseStyle}
	col := 0
	for i := 0; i < len(text) && col < width; {
		if text[i] == 0x1b && i+1 < len(text) && text[i+1] == '[' {
			end := i + 2
			for end < len(text) && text[end] != 'm' {
				end++
			}
			if end < len(text) {
				state = applySGR(state, baseStyle, parseSGRParams(text[i+2:end]))
				i = end + 1
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		if r == '\r' {
			i += size
			continue
		}
		if r == '\t' {
			spaces := 4 - (col % 4)
			for s := 0; s < spaces && col < width; s++ {
				screen.SetContent(x+col, y, ' ', nil, state.style)
				col++
			}
			i += size
			continue
		}
		screen.SetContent(x+col, y, r, nil, state.style)
		col++
		i += size
	}
	for col < width {
		screen.SetContent(x+col, y, ' ', nil, baseStyle)
		col++
	}
}

func parseSGRParams(raw string) []int {
	if raw == "" {
		return []int{0}
	}
	parts := strings.Split(raw, ";")
	params := make([]int, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			params = append(params, 0)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			params = append(params, 0)
			continue
		}
		params = append(params, n)
	}
	return params
}

var sgrBasicColors = []tcell.Color{
	tcell.ColorBlack, tcell.ColorMaroon, tcell.ColorGreen, tcell.ColorOlive,
	tcell.ColorNavy, tcell.ColorPurple, tcell.ColorTeal, tcell.ColorSilver,
}

var sgrBrightColors = []tcell.Color{
	tcell.ColorGray, tcell.ColorRed, tcell.ColorLime, tcell.ColorYellow,
	tcell.ColorBlue, tcell.ColorFuchsia, tcell.ColorAqua, tcell.ColorWhite,
}

func applySGR(state ansiState, baseStyle tcell.Style, params []int) ansiState {
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			state.style = baseStyle
		case p == 1:
			state.style = state.style.Bold(true)
		case p == 4:
			state.style = state.style.Underline(true)
		case p == 7:
			state.style = state.style.Reverse(true)
		case p >= 30 && p <= 37:
			state.style = state.style.Foreground(sgrBasicColors[p-30])
		case p >= 90 && p <= 97:
			state.style = state.style.Foreground(sgrBrightColors[p-90])
		case p >= 40 && p <= 47:
			state.style = state.style.Background(sgrBasicColors[p-40])
		case p == 39:
			fg, _, _ := baseStyle.Decompose()
			state.style = state.style.Foreground(fg)
		case p == 49:
			_, bg, _ := baseStyle.Decompose()
			state.style = state.style.Background(bg)
		case p == 38 && i+4 < len(params) && params[i+1] == 2:
			state.style = state.style.Foreground(tcell.NewRGBColor(
				int32(params[i+2]), int32(params[i+3]), int32(params[i+4])))
			i += 4
		case p == 38 && i+2 < len(params) && params[i+1] == 5:
			state.style = state.style.Foreground(tcell.PaletteColor(params[i+2]))
			i += 2
		}
	}
	return state
}
