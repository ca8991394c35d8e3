package main

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	optionNameRe    = regexp.MustCompile(`name\s*=\s*"([^"]+)"`)
	optionLabelRe   = regexp.MustCompile(`label\s*=\s*"([^"]+)"`)
	optionHoverRe   = regexp.MustCompile(`hover\s*=\s*"([^"]+)"`)
	optionDefaultRe = regexp.MustCompile(`\bdefault\s*=\s*([^\s,}]+)`)
	choiceDescRe    = regexp.MustCompile(`description\s*=\s*"([^"]+)"`)
	choiceDataRe    = regexp.MustCompile(`data\s*=\s*([^\s,}]+)`)
	optionsAssignRe = regexp.MustCompile(`\boptions\s*=\s*\{`)
	configAssignRe  = regexp.MustCompile(`configuration_options\s*=\s*\{`)
	configPairRe    = regexp.MustCompile(`(\w+)\s*=\s*([^,}]+)`)
	innerOptionsRe  = regexp.MustCompile(`configuration_options\s*=\s*\{([^}]*)\}`)
)

// balancedBlock returns the contents of the brace table opening at the
// first '{' at or after idx, exclusive of the braces themselves.
func balancedBlock(s string, idx int) (string, bool) {
	open := strings.Index(s[idx:], "{")
	if open == -1 {
		return "", false
	}
	start := idx + open
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start+1 : i], true
			}
		}
	}
	return "", false
}

// topLevelTables splits s into its depth-one { ... } groups, braces
// included.
func topLevelTables(s string) []string {
	var tables []string
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				tables = append(tables, s[start:i+1])
				start = -1
			}
		}
	}
	return tables
}

// modConfigOptions scrapes the declarative configuration_options block
// from the mod's modinfo.lua. Best effort over known key names; a mod
// without the block simply has no options.
func modConfigOptions(g gameConfig, workshopID string) []optionSpec {
	data, err := os.ReadFile(g.modinfoPath(workshopID))
	if err != nil {
		return nil
	}
	content := string(data)
	loc := configAssignRe.FindStringIndex(content)
	if loc == nil {
		return nil
	}
	block, ok := balancedBlock(content, loc[0])
	if !ok {
		return nil
	}

	var options []optionSpec
	for _, entry := range topLevelTables(block) {
		opt := optionSpec{}
		if m := optionNameRe.FindStringSubmatch(entry); m != nil {
			opt.name = m[1]
		}
		if m := optionLabelRe.FindStringSubmatch(entry); m != nil {
			opt.label = m[1]
		}
		if m := optionHoverRe.FindStringSubmatch(entry); m != nil {
			opt.hover = m[1]
		}
		if m := optionDefaultRe.FindStringSubmatch(entry); m != nil {
			opt.def = parseLuaLiteral(m[1])
		}
		if loc := optionsAssignRe.FindStringIndex(entry); loc != nil {
			if choicesBlock, ok := balancedBlock(entry, loc[0]); ok {
				for _, choice := range topLevelTables(choicesBlock) {
					c := optionChoice{}
					if m := choiceDescRe.FindStringSubmatch(choice); m != nil {
						c.description = m[1]
					}
					if m := choiceDataRe.FindStringSubmatch(choice); m != nil {
						c.data = strings.Trim(m[1], `"`)
					}
					if c.description != "" || c.data != "" {
						opt.choices = append(opt.choices, c)
					}
				}
			}
		}
		if opt.name != "" {
			options = append(options, opt)
		}
	}
	return options
}

// parseLuaLiteral infers a Go value from the literal's shape: quoted →
// string, true/false → bool, numeric with a dot → float, numeric → int,
// anything else stays a string.
func parseLuaLiteral(raw string) any {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2 {
		return raw[1 : len(raw)-1]
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}

func formatLuaLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return `"` + t + `"`
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
}

// currentModConfig reads the mod's configuration_options values from the
// shard's modoverrides.lua.
func currentModConfig(g gameConfig, workshopID, shardName string) map[string]any {
	data, err := os.ReadFile(g.overridesPath(shardName))
	if err != nil {
		return map[string]any{}
	}
	start, end, ok := modBlockBounds(string(data), workshopID)
	if !ok {
		return map[string]any{}
	}
	block := string(data)[start:end]

	inner := innerOptionsRe.FindStringSubmatch(block)
	if inner == nil {
		return map[string]any{}
	}
	values := map[string]any{}
	for _, m := range configPairRe.FindAllStringSubmatch(inner[1], -1) {
		values[m[1]] = parseLuaLiteral(m[2])
	}
	return values
}

// modBlockBounds locates the `["workshop-N"] = { ... }` block with brace
// balancing, so nested configuration_options tables are covered. Returns
// the index of the opening `[` and the index just past the closing `}`.
func modBlockBounds(content, workshopID string) (int, int, bool) {
	key := `["` + workshopID + `"]`
	start := strings.Index(content, key)
	if start == -1 {
		return 0, 0, false
	}
	open := strings.Index(content[start:], "{")
	if open == -1 {
		return 0, 0, false
	}
	depth := 0
	for i := start + open; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return start, i + 1, true
			}
		}
	}
	return 0, 0, false
}

func modEntryText(workshopID string, values map[string]any) string {
	if len(values) == 0 {
		return `["` + workshopID + `"]={ configuration_options={  }, enabled=true }`
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, "                    "+k+"="+formatLuaLiteral(values[k]))
	}
	return `["` + workshopID + `"]={ configuration_options={` + "\n" +
		strings.Join(parts, ",\n") + "\n                  }, enabled=true }"
}

// updateModConfig rewrites the mod's block with the given values, using
// brace-balanced replacement (or appending a fresh block). The rewritten
// file must still compile as Lua or the edit is rejected.
func updateModConfig(g gameConfig, workshopID string, values map[string]any, shardName string) bool {
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

	entry := modEntryText(workshopID, values)
	var newContent string
	if start, end, ok := modBlockBounds(content, workshopID); ok {
		newContent = content[:start] + entry + content[end:]
	} else {
		spliced, ok := insertBeforeFinalBrace(content, "  "+entry)
		if !ok {
			return false
		}
		newContent = spliced
	}

	if err := validateLuaSource(newContent); err != nil {
		logf("refusing to write broken %s: %v", path, err)
		return false
	}
	if err := os.WriteFile(path, []byte(newContent), 0o644); err != nil {
		logf("write %s: %v", path, err)
		return false
	}
	return true
}

// resetModToDefault rewrites the block with the defaults declared in
// modinfo.lua.
func resetModToDefault(g gameConfig, workshopID, shardName string) bool {
	defaults := map[string]any{}
	for _, opt := range modConfigOptions(g, workshopID) {
		if opt.def != nil {
			defaults[opt.name] = opt.def
		}
	}
	return updateModConfig(g, workshopID, defaults, shardName)
}
