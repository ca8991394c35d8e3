package main

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// chatTailBytes bounds how much of the chat log is read per poll.
const chatTailBytes = 32 * 1024

// chatLogs returns the most recent chat lines from the Master chat log,
// with console status echoes filtered out. A missing log file yields
// guidance lines instead of an error so the chat pane always renders.
func chatLogs(g gameConfig, lines int) []string {
	path := g.chatLogPath()
	content, err := tailFile(path, chatTailBytes)
	if err != nil {
		if os.IsNotExist(err) {
			clusters := availableClusters(g.dstDir)
			available := "None"
			if len(clusters) > 0 {
				available = strings.Join(clusters, ", ")
			}
			return []string{
				fmt.Sprintf("Chat log file not found at %s.", path),
				"Available clusters: " + available,
				"Using cluster: " + g.clusterName,
				"Make sure the server is running and the cluster directory exists.",
			}
		}
		return []string{"Error reading chat log: " + err.Error()}
	}

	var filtered []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if keepChatLine(line) {
			filtered = append(filtered, line)
		}
	}
	return lastN(filtered, lines)
}

// keepChatLine drops console status-dump echoes while preserving chat
// and announcement traffic.
func keepChatLine(line string) bool {
	if strings.Contains(line, "[Say]") ||
		strings.Contains(line, "[Join Announcement]") ||
		strings.Contains(line, "[Leave Announcement]") {
		return true
	}
	if strings.Contains(line, "c_listallplayers") || strings.Contains(line, "c_dumpseasons") {
		return false
	}
	return true
}

// sendChatMessage announces a message in game via c_announce. Only the
// Master shard accepts chat traffic.
func sendChatMessage(ctx context.Context, shardName, message string) (bool, string) {
	if shardName != "Master" {
		return false, "Chat messages can only be sent to the 'Master' shard."
	}
	return sendConsoleCommandFn(ctx, shardName, fmt.Sprintf("c_announce(%q)", message))
}

// sendSystemMessage uses the engine's system-message channel instead of
// the announcement banner.
func sendSystemMessage(ctx context.Context, shardName, message string) (bool, string) {
	if shardName != "Master" {
		return false, "Chat messages can only be sent to the 'Master' shard."
	}
	return sendConsoleCommandFn(ctx, shardName, fmt.Sprintf("TheNet:SystemMessage(%q)", message))
}
