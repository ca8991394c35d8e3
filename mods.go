package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const emptyOverrides = "return {\n}\n"

var (
	modKeyRe     = regexp.MustCompile(`\["(workshop-\d+)"\]\s*=`)
	modEnabledRe = regexp.MustCompile(`enabled\s*=\s*(true|false)`)
	modNameRe    = regexp.MustCompile(`name\s*=\s*"(.*?)"`)
)

// ensureOverridesFile creates an empty modoverrides.lua when missing.
func ensureOverridesFile(path string) error {
	if fileExists(path) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(emptyOverrides), 0o644)
}

// listMods parses modoverrides.lua for known mods and their enabled flag.
func listMods(g gameConfig, shardName string) []modEntry {
	path := g.overridesPath(shardName)
	if !fileExists(path) {
		if err := ensureOverridesFile(path); err != nil {
			logf("create %s: %v", path, err)
		}
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logf("read %s: %v", path, err)
		return nil
	}

	content := string(data)
	var mods []modEntry
	for _, m := range modKeyRe.FindAllStringSubmatch(content, -1) {
		id := m[1]
		enabled := true
		if start, end, ok := modBlockBounds(content, id); ok {
			block := content[start:end]
			if loc := enabledFlagIndex(block); loc != nil {
				enabled = block[loc[2]:loc[3]] == "true"
			}
		}
		mods = append(mods, modEntry{id: id, name: modDisplayName(g, id), enabled: enabled})
	}
	return mods
}

// enabledFlagIndex locates the mod block's own enabled literal. The
// block's nested tables (configuration_options) are masked out first so
// an option that happens to be named enabled cannot shadow the flag.
// Returns modEnabledRe submatch indices into block, or nil.
func enabledFlagIndex(block string) []int {
	masked := []byte(block)
	depth := 0
	for i := 0; i < len(block); i++ {
		switch block[i] {
		case '{':
			depth++
		case '}':
			depth--
		default:
			if depth > 1 {
				masked[i] = ' '
			}
		}
	}
	return modEnabledRe.FindSubmatchIndex(masked)
}

// modDisplayName reads the mod name from modinfo.lua, falling back to the
// workshop id.
func modDisplayName(g gameConfig, workshopID string) string {
	data, err := os.ReadFile(g.modinfoPath(workshopID))
	if err != nil {
		return workshopID
	}
	if m := modNameRe.FindStringSubmatch(string(data)); m != nil {
		return m[1]
	}
	return workshopID
}

// toggleMod flips only the enabled literal of the mod's block, leaving
// every other byte of the file untouched.
func toggleMod(g gameConfig, workshopID string, enabled bool, shardName string) bool {
	path := g.overridesPath(shardName)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	content := string(data)

	start, end, ok := modBlockBounds(content, workshopID)
	if !ok {
		return false
	}
	block := content[start:end]
	loc := enabledFlagIndex(block)
	if loc == nil {
		return false
	}
	value := "false"
	if enabled {
		value = "true"
	}
	newContent := content[:start] + block[:loc[2]] + value + block[loc[3]:] + content[end:]
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		logf("write %s: %v", path, err)
		return false
	}
	return true
}

// addMod registers a workshop mod in dedicated_server_mods_setup.lua and
// inserts a default-enabled block into the shard's modoverrides.lua.
func addMod(g gameConfig, workshopID, shardName string) bool {
	if !addToModsSetup(g, workshopID) {
		return false
	}
	return addToOverrides(g, workshopID, shardName)
}

func addToModsSetup(g gameConfig, workshopID string) bool {
	path := g.modsSetupPath()
	if !dirExists(filepath.Dir(path)) {
		return false
	}
	content := ""
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	}

	numericID := strings.TrimPrefix(workshopID, "workshop-")
	entry := `ServerModSetup("` + numericID + `")`
	if strings.Contains(content, entry) {
		return true
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		logf("write %s: %v", path, err)
		return false
	}
	return true
}

func addToOverrides(g gameConfig, workshopID, shardName string) bool {
	path := g.overridesPath(shardName)
	if err := ensureOverridesFile(path); err != nil {
		logf("create %s: %v", path, err)
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	content := string(data)
	if strings.Contains(content, `["`+workshopID+`"]`) {
		return true
	}

	entry := `  ["` + workshopID + `"]={ configuration_options={  }, enabled=true }`
	newContent, ok := insertBeforeFinalBrace(content, entry)
	if !ok {
		return false
	}
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		logf("write %s: %v", path, err)
		return false
	}
	return true
}

// insertBeforeFinalBrace splices an entry in front of the table's closing
// brace, adding a comma when the table already has entries.
func insertBeforeFinalBrace(content, entry string) (string, bool) {
	lastBrace := strings.LastIndex(content, "}")
	if lastBrace == -1 {
		return content, false
	}
	head := content[:lastBrace]
	prefix := ",\n"
	if strings.TrimSpace(head) == "return {" {
		prefix = "\n"
	}
	return strings.TrimRight(head, " \t\n") + prefix + entry + "\n" + content[lastBrace:], true
}
