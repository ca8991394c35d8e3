package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var sendConsoleCommandFn = sendConsoleCommand

const fifoTimeout = 5 * time.Second

// sendConsoleCommand pushes a console command into the shard's FIFO via
// shell redirection. A blocking open on a reader-less pipe is cut off by
// the command timeout. Failures are reported, never raised.
func sendConsoleCommand(ctx context.Context, shardName, command string) (bool, string) {
	path := fifoPath(shardName)
	if !fileExists(path) {
		return false, fmt.Sprintf("FIFO for shard %q not found at %s", shardName, path)
	}

	cctx, cancel := context.WithTimeout(ctx, fifoTimeout)
	defer cancel()

	shellCmd := fmt.Sprintf("echo %s > %s", shellQuote(command), shellQuote(path))
	cmd := exec.CommandContext(cctx, "sh", "-c", shellCmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return false, fmt.Sprintf("timeout sending command to FIFO: %s", path)
		}
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return false, fmt.Sprintf("failed to send command to FIFO: %s", msg)
	}
	return true, "Command sent successfully."
}
