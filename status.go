package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// statusTailBytes bounds how much of a server log is scanned per poll so
// large logs cannot stall a refresh.
const statusTailBytes = 32 * 1024

var (
	seasonRe = regexp.MustCompile(`(?:\[Season\] Season:\s*|:\s*)(\w+)\s*(\d+)\s*(?:,\s*Remaining:|\s*->)\s*(\d+)\s*days?`)
	dayRe    = regexp.MustCompile(`(?:Current day:|\[World State\] day:)\s*(\d+)`)
	phaseRe  = regexp.MustCompile(`(?:Current phase:|\[World State\] phase:)\s*(\w+)`)
	playerRe = regexp.MustCompile(`\[\d+\]\s+\((KU_[\w-]+)\)\s+(.*?)\s+<(.*?)>`)
)

// tailFile reads at most max bytes from the end of the file.
func tailFile(path string, max int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return "", err
	}
	offset := size - max
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseShardLog extracts world state from a log tail. Fields default to
// "Unknown" when no pattern matches; the last match inside the scanned
// window wins.
func parseShardLog(content string) shardStatus {
	st := shardStatus{season: "Unknown", day: "Unknown", daysLeft: "Unknown", phase: "Unknown"}

	if matches := seasonRe.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		m := matches[len(matches)-1]
		st.season = capitalize(m[1])
		if elapsed, err := strconv.Atoi(m[2]); err == nil {
			st.day = itoa(elapsed + 1)
		}
		st.daysLeft = m[3]
	}

	// The explicit "Current day" print reports the current day directly;
	// the natural world-state log reports completed cycles.
	if matches := dayRe.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		last := matches[len(matches)-1][1]
		if strings.Contains(content, "Current day: "+last) {
			st.day = last
		} else if cycles, err := strconv.Atoi(last); err == nil {
			st.day = itoa(cycles + 1)
		}
	}

	if matches := phaseRe.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		st.phase = capitalize(matches[len(matches)-1][1])
	}

	// Only the roster after the most recent dump counts.
	rosterWindow := content
	if idx := strings.LastIndex(content, "All players:"); idx >= 0 {
		rosterWindow = content[idx:]
	}
	seen := map[string]struct{}{}
	for _, m := range playerRe.FindAllStringSubmatch(rosterWindow, -1) {
		kuID := m[1]
		if _, ok := seen[kuID]; ok {
			continue
		}
		seen[kuID] = struct{}{}
		st.players = append(st.players, player{kuID: kuID, name: m[2], character: m[3]})
	}
	return st
}

// getServerStatus polls one shard, or every desired shard when shardName
// is empty. Headline fields come from the Master shard only; per-shard
// values stay in the shards map. Player rosters are merged across shards
// keyed by KU id.
func getServerStatus(g gameConfig, shardName string) serverStatus {
	var names []string
	if shardName == "" {
		names = readDesiredShards()
	} else {
		names = []string{shardName}
	}

	combined := unknownStatus()
	allPlayers := map[string]player{}
	var order []string

	for _, name := range names {
		logPath := g.serverLogPath(name)
		if !fileExists(logPath) {
			combined.shards[name] = shardStatus{
				errText: fmt.Sprintf("Log file not found for shard %q", name),
			}
			continue
		}
		content, err := tailFile(logPath, statusTailBytes)
		if err != nil {
			combined.shards[name] = shardStatus{
				errText: fmt.Sprintf("Error reading shard %q: %v", name, err),
			}
			continue
		}
		st := parseShardLog(content)
		combined.shards[name] = st

		for _, p := range st.players {
			if _, ok := allPlayers[p.kuID]; !ok {
				order = append(order, p.kuID)
			}
			allPlayers[p.kuID] = p
		}

		if name == "Master" {
			combined.season = st.season
			combined.day = st.day
			combined.daysLeft = st.daysLeft
			combined.phase = st.phase
		}
	}

	combined.players = make([]player, 0, len(order))
	for _, id := range order {
		combined.players = append(combined.players, allPlayers[id])
	}
	return combined
}

var statusDumpCommands = []string{
	"c_dumpseasons()",
	`print("Current day: " .. (TheWorld.components.worldstate.data.cycles + 1))`,
	`print("Current phase: " .. TheWorld.components.worldstate.data.phase)`,
	"c_listallplayers()",
}

var statusCommandDelay = 500 * time.Millisecond

// requestStatusUpdate asks each shard to dump fresh world state into its
// own log. Open loop: there is no acknowledgment, the next poll simply
// picks up whatever landed.
func requestStatusUpdate(ctx context.Context, shardName string) bool {
	var names []string
	if shardName == "" {
		names = readDesiredShards()
	} else {
		names = []string{shardName}
	}

	ok := true
	for _, name := range names {
		for _, cmd := range statusDumpCommands {
			if sent, _ := sendConsoleCommandFn(ctx, name, cmd); !sent {
				ok = false
			}
			select {
			case <-ctx.Done():
				return false
			case <-time.After(statusCommandDelay):
			}
		}
	}
	return ok
}
