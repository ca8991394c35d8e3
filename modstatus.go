package main

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// modErrorWindow bounds how many trailing log lines are scanned for
// mod-related errors.
const modErrorWindow = 200

// modLogTailBytes bounds how much of each shard log is read when
// scraping mod state. Wider than the status tail so mod loading lines
// from further back stay visible.
const modLogTailBytes = 256 * 1024

// collectModStatus enriches the override-file mod list with runtime state
// scraped from the shard logs.
func collectModStatus(g gameConfig, mods []modEntry) []modStatus {
	logs := readShardLogs(g)
	overridesOK := overridesFileValid(g)

	out := make([]modStatus, 0, len(mods))
	for _, m := range mods {
		st := modStatus{
			id:          m.id,
			name:        m.name,
			enabled:     m.enabled,
			configValid: overridesOK,
		}
		st.loadedInGame = modLoadedInLogs(logs, m.id)
		st.errorCount, st.lastError = modErrorsInLogs(logs, m.id)
		st.optionCount = len(modConfigOptions(g, m.id))
		st.configText = configSummary(currentModConfig(g, m.id, "Master"))
		out = append(out, st)
	}
	return out
}

// configSummary renders the override values as a compact k=v list.
func configSummary(values map[string]any) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatLuaLiteral(values[k]))
	}
	return strings.Join(parts, " ")
}

// readShardLogs returns the server log content of every shard directory
// in the cluster.
func readShardLogs(g gameConfig) []string {
	clusterDir := filepath.Join(g.dstDir, g.clusterName)
	entries, err := os.ReadDir(clusterDir)
	if err != nil {
		return nil
	}
	var logs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		content, err := tailFile(filepath.Join(clusterDir, entry.Name(), "server_log.txt"), modLogTailBytes)
		if err != nil {
			continue
		}
		logs = append(logs, content)
	}
	return logs
}

func modLoadedInLogs(logs []string, workshopID string) bool {
	id := regexp.QuoteMeta(workshopID)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)Loading mod:.*` + id),
		regexp.MustCompile(`(?i)Mod.*` + id + `.*loaded`),
		regexp.MustCompile(`(?i)Registering mod.*` + id),
	}
	for _, content := range logs {
		for _, re := range patterns {
			if re.MatchString(content) {
				return true
			}
		}
	}
	return false
}

func modErrorsInLogs(logs []string, workshopID string) (int, string) {
	id := regexp.QuoteMeta(workshopID)
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)error.*` + id),
		regexp.MustCompile(`(?i)failed.*` + id),
		regexp.MustCompile(`(?i)` + id + `.*error`),
		regexp.MustCompile(`(?i)mod.*` + id + `.*failed`),
	}

	count := 0
	last := ""
	for _, content := range logs {
		lines := lastN(strings.Split(content, "\n"), modErrorWindow)
		for _, line := range lines {
			for _, re := range patterns {
				if re.MatchString(line) {
					count++
					last = strings.TrimSpace(line)
					break
				}
			}
		}
	}
	return count, last
}

// overridesFileValid compiles the Master modoverrides.lua. A missing file
// is valid; a file that fails to compile flags every mod's configuration.
func overridesFileValid(g gameConfig) bool {
	path := g.overridesPath("Master")
	if !fileExists(path) {
		return true
	}
	return validateLuaFile(path) == nil
}
