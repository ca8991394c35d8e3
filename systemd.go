package main

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

var runSystemctlFn = runSystemctl
var runJournalctlFn = runJournalctl

var systemctlTimeout = 30 * time.Second

func runSystemctl(ctx context.Context, args ...string) (bool, string, string) {
	cctx, cancel := context.WithTimeout(ctx, systemctlTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "systemctl", append([]string{"--user"}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return false, strings.TrimSpace(stdout.String()), "systemctl " + strings.Join(args, " ") + " timed out"
		}
		if errors.Is(err, exec.ErrNotFound) {
			return false, "", "systemctl command not found"
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return false, strings.TrimSpace(stdout.String()), msg
	}
	return true, strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String())
}

func unitName(shardName string) string {
	return unitPrefix + shardName + unitSuffix
}

// systemdInstances returns shard names reported by the given systemctl
// listing command ("list-units" or "list-unit-files") in stateFilter state.
func systemdInstances(ctx context.Context, command, stateFilter string) map[string]struct{} {
	args := []string{command, "--no-legend", unitPrefix + "*" + unitSuffix}
	if command == "list-units" {
		args = append(args, "--state", stateFilter)
	}
	ok, stdout, _ := runSystemctlFn(ctx, args...)
	instances := map[string]struct{}{}
	if !ok {
		return instances
	}
	for _, line := range strings.Split(stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		unit := fields[0]
		// list-unit-files carries the state in the second column.
		if command == "list-unit-files" {
			if len(fields) < 2 || fields[1] != stateFilter {
				continue
			}
		}
		if !strings.HasPrefix(unit, unitPrefix) || !strings.HasSuffix(unit, unitSuffix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(unit, unitPrefix), unitSuffix)
		if name != "" {
			instances[name] = struct{}{}
		}
	}
	return instances
}

// controlShards runs one systemctl invocation over all named shards.
// Actions: start, stop, restart, enable, disable.
func controlShards(ctx context.Context, action string, names []string) (bool, string, string) {
	if len(names) == 0 {
		return true, "", ""
	}
	args := make([]string, 0, len(names)+1)
	args = append(args, action)
	for _, name := range names {
		args = append(args, unitName(name))
	}
	return runSystemctlFn(ctx, args...)
}

func controlShard(ctx context.Context, shardName, action string) (bool, string, string) {
	return controlShards(ctx, action, []string{shardName})
}

func runJournalctl(ctx context.Context, unit string, lines int) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, systemctlTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "journalctl", "--user", "-u", unit,
		"-n", itoa(lines), "--no-pager", "-o", "cat")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.New("journalctl command not found")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.New(msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// journalLogs returns the journal tail for a shard; failures come back as
// display text so the log viewer never errors out.
func journalLogs(ctx context.Context, shardName string, lines int) []string {
	out, err := runJournalctlFn(ctx, unitName(shardName), lines)
	if err != nil {
		return []string{"error reading logs: " + err.Error()}
	}
	if out == "" {
		return []string{"(no journal entries)"}
	}
	return strings.Split(out, "\n")
}

// syncShards reconciles systemd units with the desired shard list:
// desired shards get enabled and started, everything else managed under
// the dontstarve@ prefix gets stopped and disabled.
func syncShards(ctx context.Context, desired []string) {
	desiredSet := map[string]struct{}{}
	for _, name := range desired {
		desiredSet[name] = struct{}{}
	}

	enabled := systemdInstances(ctx, "list-unit-files", "enabled")
	running := systemdInstances(ctx, "list-units", "active")

	if len(desired) > 0 {
		controlShards(ctx, "enable", desired)
		controlShards(ctx, "start", desired)
	}

	var toRemove []string
	for name := range enabled {
		if _, ok := desiredSet[name]; !ok {
			toRemove = append(toRemove, name)
		}
	}
	for name := range running {
		if _, ok := desiredSet[name]; ok {
			continue
		}
		if !containsString(toRemove, name) {
			toRemove = append(toRemove, name)
		}
	}
	if len(toRemove) > 0 {
		controlShards(ctx, "stop", toRemove)
		controlShards(ctx, "disable", toRemove)
	}

	runSystemctlFn(ctx, "enable", "--now", "dontstarve.target")
}
