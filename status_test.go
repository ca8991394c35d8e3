package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseShardLogDefaults(t *testing.T) {
	st := parseShardLog("")
	if st.season != "Unknown" || st.day != "Unknown" || st.daysLeft != "Unknown" || st.phase != "Unknown" {
		t.Fatalf("defaults = %+v", st)
	}
	if len(st.players) != 0 {
		t.Fatalf("players = %v", st.players)
	}
}

func TestParseShardLogSeason(t *testing.T) {
	log := "[00:01:00]: [Season] Season: autumn 9, Remaining: 11 days\n"
	st := parseShardLog(log)
	if st.season != "Autumn" {
		t.Fatalf("season = %q", st.season)
	}
	if st.day != "10" {
		t.Fatalf("day = %q", st.day)
	}
	if st.daysLeft != "11" {
		t.Fatalf("daysLeft = %q", st.daysLeft)
	}
}

func TestParseShardLogSeasonLastMatchWins(t *testing.T) {
	log := "[Season] Season: autumn 9, Remaining: 11 days\n" +
		"[Season] Season: winter 2, Remaining: 13 days\n"
	st := parseShardLog(log)
	if st.season != "Winter" || st.day != "3" || st.daysLeft != "13" {
		t.Fatalf("parsed = %+v", st)
	}
}

func TestParseShardLogCurrentDayIsLiteral(t *testing.T) {
	// The explicit dump already reports the current day; it must not be
	// incremented like a cycle count.
	log := "[Season] Season: summer 10, Remaining: 5 days\nCurrent day: 11\n"
	st := parseShardLog(log)
	if st.day != "11" {
		t.Fatalf("day = %q, want 11", st.day)
	}
}

func TestParseShardLogWorldStateDayIsCycles(t *testing.T) {
	log := "[World State] day: 10\n"
	st := parseShardLog(log)
	if st.day != "11" {
		t.Fatalf("day = %q, want 11", st.day)
	}
}

func TestParseShardLogPhase(t *testing.T) {
	log := "Current phase: day\nCurrent phase: dusk\n"
	st := parseShardLog(log)
	if st.phase != "Dusk" {
		t.Fatalf("phase = %q", st.phase)
	}
}

func TestParseShardLogPlayers(t *testing.T) {
	log := strings.Join([]string{
		"All players:",
		"[1] (KU_abc123) Wilson <wilson>",
		"[2] (KU_def456) Wendy girl <wendy>",
		"All players:",
		"[1] (KU_abc123) Wilson <wilson>",
		"[1] (KU_abc123) Wilson <wilson>",
	}, "\n")
	st := parseShardLog(log)
	if len(st.players) != 1 {
		t.Fatalf("players = %v", st.players)
	}
	p := st.players[0]
	if p.kuID != "KU_abc123" || p.name != "Wilson" || p.character != "wilson" {
		t.Fatalf("player = %+v", p)
	}
}

func TestParseShardLogPlayerNameWithSpaces(t *testing.T) {
	log := "All players:\n[2] (KU_def456) Wendy girl <wendy>\n"
	st := parseShardLog(log)
	if len(st.players) != 1 || st.players[0].name != "Wendy girl" {
		t.Fatalf("players = %+v", st.players)
	}
}

func TestTailFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_log.txt")
	content := strings.Repeat("x", 100) + "TAIL"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := tailFile(path, 10)
	if err != nil {
		t.Fatalf("tailFile: %v", err)
	}
	if got != "xxxxxxTAIL" {
		t.Fatalf("tail = %q", got)
	}
	full, err := tailFile(path, 10_000)
	if err != nil {
		t.Fatalf("tailFile full: %v", err)
	}
	if full != content {
		t.Fatalf("full tail = %q", full)
	}
}

func testGame(t *testing.T) gameConfig {
	t.Helper()
	dir := t.TempDir()
	return gameConfig{
		dstDir:      filepath.Join(dir, "klei"),
		installDir:  filepath.Join(dir, "install"),
		clusterName: "TestCluster",
		branch:      "main",
	}
}

func writeShardLog(t *testing.T, g gameConfig, shardName, content string) {
	t.Helper()
	path := g.serverLogPath(shardName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestGetServerStatusMasterHeadline(t *testing.T) {
	g := testGame(t)
	writeShardLog(t, g, "Master",
		"[Season] Season: winter 4, Remaining: 12 days\nCurrent phase: night\n"+
			"All players:\n[1] (KU_aaa) Wilson <wilson>\n")
	writeShardLog(t, g, "Caves",
		"[Season] Season: summer 1, Remaining: 2 days\n"+
			"All players:\n[1] (KU_bbb) Webber <webber>\n")

	st := getServerStatus(g, "Master")
	if st.season != "Winter" || st.phase != "Night" {
		t.Fatalf("headline = %+v", st)
	}

	// Caves alone never supplies the headline.
	st = getServerStatus(g, "Caves")
	if st.season != "Unknown" {
		t.Fatalf("caves headline season = %q", st.season)
	}
	if caves := st.shards["Caves"]; caves.season != "Summer" {
		t.Fatalf("caves shard season = %q", caves.season)
	}
}

func TestGetServerStatusMissingLog(t *testing.T) {
	g := testGame(t)
	st := getServerStatus(g, "Master")
	sh := st.shards["Master"]
	if sh.errText == "" || !strings.Contains(sh.errText, "Master") {
		t.Fatalf("errText = %q", sh.errText)
	}
}

func TestRequestStatusUpdateSendsDumps(t *testing.T) {
	var sent []string
	orig := sendConsoleCommandFn
	origDelay := statusCommandDelay
	t.Cleanup(func() {
		sendConsoleCommandFn = orig
		statusCommandDelay = origDelay
	})
	statusCommandDelay = time.Millisecond
	sendConsoleCommandFn = func(_ context.Context, shardName, command string) (bool, string) {
		sent = append(sent, shardName+": "+command)
		return true, "ok"
	}

	if !requestStatusUpdate(context.Background(), "Master") {
		t.Fatalf("requestStatusUpdate failed")
	}
	if len(sent) != len(statusDumpCommands) {
		t.Fatalf("sent = %v", sent)
	}
	if !strings.Contains(sent[0], "c_dumpseasons()") {
		t.Fatalf("first command = %q", sent[0])
	}
	if !strings.Contains(sent[len(sent)-1], "c_listallplayers()") {
		t.Fatalf("last command = %q", sent[len(sent)-1])
	}
}
