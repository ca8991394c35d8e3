package main

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestNewChatLines(t *testing.T) {
	cases := []struct {
		name string
		prev []string
		next []string
		want []string
	}{
		{
			name: "no prev",
			prev: nil,
			next: []string{"a", "b"},
			want: []string{"a", "b"},
		},
		{
			name: "overlap",
			prev: []string{"a", "b"},
			next: []string{"b", "c", "d"},
			want: []string{"c", "d"},
		},
		{
			name: "unchanged",
			prev: []string{"a", "b"},
			next: []string{"a", "b"},
			want: []string{},
		},
		{
			name: "disjoint falls back to everything",
			prev: []string{"a"},
			next: []string{"x", "y"},
			want: []string{"x", "y"},
		},
	}
	for _, c := range cases {
		got := newChatLines(c.prev, c.next)
		if len(got) == 0 && len(c.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s: newChatLines = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestFormatDiscordChat(t *testing.T) {
	tag, text, ok := formatDiscordChat("[00:01]: [Say] (KU_abc) Wilson: hello there")
	if !ok || tag != "Say" {
		t.Fatalf("tag = %q ok=%v", tag, ok)
	}
	if text != "\U0001f4ac **Wilson**: hello there" {
		t.Fatalf("text = %q", text)
	}

	tag, text, ok = formatDiscordChat("[00:02]: [Join Announcement] Wendy")
	if !ok || tag != "Join Announcement" {
		t.Fatalf("tag = %q ok=%v", tag, ok)
	}
	if text != "➡️ **Wendy** joined the server" {
		t.Fatalf("text = %q", text)
	}

	tag, text, ok = formatDiscordChat("[00:03]: [Leave Announcement] Wendy")
	if !ok || text != "⬅️ **Wendy** left the server" {
		t.Fatalf("tag=%q text=%q ok=%v", tag, text, ok)
	}

	if _, _, ok := formatDiscordChat("[00:04]: plain log line"); ok {
		t.Fatalf("plain line parsed as chat")
	}
}

func TestSkipRelay(t *testing.T) {
	p := &discordPlugin{}
	cases := []struct {
		line string
		skip bool
	}{
		{"[1]: [Say] (KU_a) [Discord] bob: hi", true},
		{"[1]: [System Message] server restart", true},
		{"[1]: [Whisper] (KU_a) A: psst", true},
		{"[1]: [Say] (KU_a) Wilson: hi", false},
	}
	for _, c := range cases {
		if got := p.skipRelay(c.line); got != c.skip {
			t.Fatalf("skipRelay(%q) = %v, want %v", c.line, got, c.skip)
		}
	}
}

func TestSkipRelayEchoOfOwnAnnouncement(t *testing.T) {
	p := &discordPlugin{}
	p.rememberSent("bob: restarting soon")
	if !p.skipRelay("[1]: [Say] (KU_a) [Host] bob: restarting soon") {
		t.Fatalf("own announcement relayed back")
	}
	if p.skipRelay("[1]: [Say] (KU_a) Wilson: unrelated") {
		t.Fatalf("unrelated line skipped")
	}
}

func TestRememberSentBounded(t *testing.T) {
	p := &discordPlugin{}
	for i := 0; i < sentCacheSize*2; i++ {
		p.rememberSent(itoa(i))
	}
	if len(p.sentRecently) != sentCacheSize {
		t.Fatalf("cache size = %d", len(p.sentRecently))
	}
	if p.sentRecently[0] != itoa(sentCacheSize) {
		t.Fatalf("oldest kept = %q", p.sentRecently[0])
	}
}

func TestOnChatLinesReturnsWhileStatusPollRuns(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeShardsConf(t, home, "Master\n")

	oldDelay := statusCommandDelay
	statusCommandDelay = time.Millisecond
	t.Cleanup(func() { statusCommandDelay = oldDelay })

	release := make(chan struct{})
	stubConsoleCommand(t, func(_ context.Context, _, _ string) (bool, string) {
		<-release
		return true, "ok"
	})
	t.Cleanup(func() { close(release) })

	p := &discordPlugin{app: newTestApp(t), requests: make(chan botMsg, 4)}
	ctx := context.Background()

	backlog := []string{"[1]: [Say] (KU_a) Wilson: old"}
	p.onChatLines(ctx, backlog)

	start := time.Now()
	p.onChatLines(ctx, append(backlog, "[2]: [Join Announcement] Wendy"))
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("chat callback blocked for %v", elapsed)
	}
}

func TestStatusSummaryLines(t *testing.T) {
	snap := appState{
		status: serverStatus{
			season:   "Winter",
			day:      "12",
			daysLeft: "4",
			phase:    "Night",
			players:  []player{{name: "Wilson"}},
		},
		shards: []shard{
			{name: "Master", running: true},
			{name: "Caves", running: false},
		},
	}
	lines := statusSummaryLines(snap)
	want := []string{
		"Season: Winter",
		"Day: 12 (4 left)",
		"Phase: Night",
		"Players: 1",
		"Shards running: 1/2",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v", lines)
	}
}
