package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var findUpdaterFn = findUpdater

// findUpdater locates the dst-updater script that drives steamcmd.
func findUpdater() (string, error) {
	if override := strings.TrimSpace(os.Getenv("DST_UPDATER")); override != "" {
		return override, nil
	}
	candidates := []string{
		filepath.Join(homeDir(), ".local", "bin", "dst-updater"),
	}
	if path, err := exec.LookPath("dst-updater"); err == nil {
		candidates = append(candidates, path)
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return path, nil
		}
	}
	return "", errors.New("dst-updater script not found; install it under ~/.local/bin")
}

// runUpdater runs the game-server updater to completion and returns its
// combined output as the result message.
func runUpdater(ctx context.Context) (bool, string) {
	path, err := findUpdaterFn()
	if err != nil {
		return false, err.Error()
	}
	cmd := exec.CommandContext(ctx, path)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			trimmed = err.Error()
		}
		return false, fmt.Sprintf("updater failed: %s", trimmed)
	}
	if trimmed == "" {
		trimmed = "update finished"
	}
	return true, trimmed
}
