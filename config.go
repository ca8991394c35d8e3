package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	unitPrefix = "dontstarve@"
	unitSuffix = ".service"
)

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func configDir() string {
	return filepath.Join(homeDir(), ".config", "dontstarve")
}

func gameConfigPath() string {
	return filepath.Join(configDir(), "config")
}

func shardsFilePath() string {
	return filepath.Join(configDir(), "shards.conf")
}

func envFilePath() string {
	return filepath.Join(configDir(), ".env")
}

func fifoPath(shardName string) string {
	return filepath.Join(homeDir(), ".cache", "dontstarve", "dst-"+shardName+".fifo")
}

func (g gameConfig) shardDir(shardName string) string {
	return filepath.Join(g.dstDir, g.clusterName, shardName)
}

func (g gameConfig) serverLogPath(shardName string) string {
	return filepath.Join(g.shardDir(shardName), "server_log.txt")
}

func (g gameConfig) chatLogPath() string {
	return filepath.Join(g.shardDir("Master"), "server_chat_log.txt")
}

func (g gameConfig) overridesPath(shardName string) string {
	return filepath.Join(g.shardDir(shardName), "modoverrides.lua")
}

func (g gameConfig) modsSetupPath() string {
	return filepath.Join(g.installDir, "mods", "dedicated_server_mods_setup.lua")
}

func (g gameConfig) modinfoPath(workshopID string) string {
	return filepath.Join(g.installDir, "mods", workshopID, "modinfo.lua")
}

var configLineRe = regexp.MustCompile(`^\s*([^#\s=]+)\s*=\s*"?([^"]*)"?`)

// readGameConfigFile parses KEY="value" lines, expanding $VAR references.
func readGameConfigFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := configLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		values[m[1]] = os.ExpandEnv(m[2])
	}
	return values, nil
}

func defaultGameConfigValues() map[string]string {
	return map[string]string{
		"CLUSTER_NAME":        "auto",
		"BRANCH":              "main",
		"INSTALL_DIR":         "$HOME/dontstarvetogether_dedicated_server",
		"STEAMCMD_DIR":        "$HOME/steamcmd",
		"DONTSTARVE_DIR":      "$HOME/.klei/DoNotStarveTogether",
		"DONTSTARVE_BETA_DIR": "$HOME/.klei/DoNotStarveTogetherBetaBranch",
	}
}

func writeGameConfigFile(path string, values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("# dstman configuration\n")
	b.WriteString("# Cluster name (set to 'auto' to auto-detect clusters):\n")
	fmt.Fprintf(&b, "CLUSTER_NAME=%q\n\n", valueOr(values, "CLUSTER_NAME", "auto"))
	b.WriteString("# Steam branch to use (main, beta):\n")
	fmt.Fprintf(&b, "BRANCH=%q\n\n", valueOr(values, "BRANCH", "main"))
	b.WriteString("# DST install directory:\n")
	b.WriteString("INSTALL_DIR=\"$HOME/dontstarvetogether_dedicated_server\"\n\n")
	b.WriteString("# SteamCMD directory:\n")
	b.WriteString("STEAMCMD_DIR=\"$HOME/steamcmd\"\n\n")
	b.WriteString("# Game saves directories:\n")
	b.WriteString("DONTSTARVE_DIR=\"$HOME/.klei/DoNotStarveTogether\"\n")
	b.WriteString("DONTSTARVE_BETA_DIR=\"$HOME/.klei/DoNotStarveTogetherBetaBranch\"\n\n")
	b.WriteString("# Current shard list lives in shards.conf (one name per line).\n")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func valueOr(values map[string]string, key, fallback string) string {
	if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// setConfigValue rewrites one KEY="value" line in the config file,
// leaving every other line untouched. A missing file gets the default
// template with the value applied; a missing key is appended.
func setConfigValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		return writeGameConfigFile(path, map[string]string{key: value})
	}
	keyRe := regexp.MustCompile(`^\s*` + regexp.QuoteMeta(key) + `\s*=`)
	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		if keyRe.MatchString(line) {
			lines[i] = fmt.Sprintf("%s=%q", key, value)
			found = true
		}
	}
	if !found {
		if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "" {
			lines[n-1] = fmt.Sprintf("%s=%q", key, value)
			lines = append(lines, "")
		} else {
			lines = append(lines, fmt.Sprintf("%s=%q", key, value))
		}
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

// loadGameConfig resolves the effective game configuration, creating a
// default config file on first run.
func loadGameConfig() gameConfig {
	values, err := readGameConfigFile(gameConfigPath())
	if err != nil {
		values = defaultGameConfigValues()
		if writeErr := writeGameConfigFile(gameConfigPath(), values); writeErr != nil {
			logf("write default config: %v", writeErr)
		}
		for k, v := range values {
			values[k] = os.ExpandEnv(v)
		}
	}

	dstDir := valueOr(values, "DONTSTARVE_DIR", "")
	if dstDir == "" {
		p1 := filepath.Join(homeDir(), ".klei", "DoNotStarveTogether")
		p2 := filepath.Join(homeDir(), "DoNotStarveTogether")
		dstDir = p1
		if !dirExists(p1) && dirExists(p2) {
			dstDir = p2
		}
	}
	installDir := valueOr(values, "INSTALL_DIR", filepath.Join(homeDir(), "dontstarvetogether_dedicated_server"))

	cluster := valueOr(values, "CLUSTER_NAME", "auto")
	if cluster == "auto" {
		cluster = autoDetectCluster(dstDir)
	}

	return gameConfig{
		dstDir:      dstDir,
		installDir:  installDir,
		clusterName: cluster,
		branch:      valueOr(values, "BRANCH", "main"),
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// availableClusters lists cluster directories that look like dedicated
// servers (cluster.ini plus a Master shard with server.ini).
func availableClusters(dstDir string) []string {
	entries, err := os.ReadDir(dstDir)
	if err != nil {
		return nil
	}
	clusters := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(dstDir, entry.Name())
		if fileExists(filepath.Join(dir, "cluster.ini")) && fileExists(filepath.Join(dir, "Master", "server.ini")) {
			clusters = append(clusters, entry.Name())
		}
	}
	sort.Strings(clusters)
	return clusters
}

func autoDetectCluster(dstDir string) string {
	if clusters := availableClusters(dstDir); len(clusters) > 0 {
		return clusters[0]
	}
	return "MyDediServer"
}

// readDesiredShards reads shard names from shards.conf, one per line.
func readDesiredShards() []string {
	data, err := os.ReadFile(shardsFilePath())
	if err != nil {
		return nil
	}
	var shards []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		shards = append(shards, line)
	}
	return shards
}

func (g gameConfig) writeClusterToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty cluster token")
	}
	path := filepath.Join(g.dstDir, g.clusterName, "cluster_token.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// loadEnvFile sets process env vars from a .env file next to the config.
// Existing variables win.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, value)
	}
}
