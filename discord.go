package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

// The Discord bridge runs the Discord session in a separate worker
// process so a crash in the gateway connection never takes down the
// dashboard. Parent and worker talk JSON lines: worker requests flow up
// over its stdout, responses and relayed chat flow down over its stdin,
// worker logs come back on stderr.

// botMsg is one line of the parent/worker protocol. The op decides
// which fields are meaningful.
type botMsg struct {
	Op     string   `json:"op"`
	ID     string   `json:"id,omitempty"`
	Action string   `json:"action,omitempty"`
	Author string   `json:"author,omitempty"`
	Text   string   `json:"text,omitempty"`
	Lines  []string `json:"lines,omitempty"`
	OK     bool     `json:"ok,omitempty"`
}

// Ops sent by the worker.
const (
	opGetStatus     = "GET_STATUS"
	opGetPlayers    = "GET_PLAYERS"
	opControlServer = "CONTROL_SERVER"
	opUpdateServer  = "UPDATE_SERVER"
	opAnnounce      = "ANNOUNCE"
	opRelayChat     = "RELAY_CHAT"
)

// Ops sent by the parent.
const (
	opSendChat        = "SEND_CHAT"
	opStatusResponse  = "STATUS_RESPONSE"
	opPlayersResponse = "PLAYERS_RESPONSE"
	opControlResponse = "CONTROL_RESPONSE"
	opUpdatePresence  = "UPDATE_PRESENCE"
	opStop            = "STOP"
)

const (
	presenceInterval = 30 * time.Second
	sentCacheSize    = 20
)

var chatTagRe = regexp.MustCompile(`\[(Say|Join Announcement|Leave Announcement)\]\s*(?:\((KU_[\w-]+)\)\s*)?(.*)$`)

var chatTagEmoji = map[string]string{
	"Say":                "\U0001f4ac",
	"Join Announcement":  "➡️",
	"Leave Announcement": "⬅️",
}

type discordPlugin struct {
	app *appContext

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writeMu sync.Mutex

	requests chan botMsg
	chatSub  int

	mu           sync.Mutex
	lastTail     []string
	synced       bool
	sentRecently []string

	lastPresence time.Time
}

func newDiscordPlugin() plugin {
	return &discordPlugin{
		requests: make(chan botMsg, 64),
	}
}

func (p *discordPlugin) name() string { return "discord" }

// start spawns the worker process and wires the streams. Missing bot
// credentials disable the bridge without failing the app.
func (p *discordPlugin) start(ctx context.Context, app *appContext) error {
	if strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")) == "" {
		return errors.New("DISCORD_BOT_TOKEN not set, discord bridge disabled")
	}
	p.app = app

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	cmd := exec.Command(exe, "-bot-worker")
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start bot worker: %w", err)
	}
	p.cmd = cmd
	p.stdin = stdin

	go p.readRequests(stdout)
	go p.readWorkerLogs(stderr)

	p.chatSub = app.bus.subscribe(eventChatMessage, func(ev event) {
		lines, ok := ev.data.([]string)
		if !ok {
			return
		}
		p.onChatLines(ctx, lines)
	})

	logf("discord bridge: worker pid %d", cmd.Process.Pid)
	return nil
}

func (p *discordPlugin) readRequests(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg botMsg
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logf("discord bridge: bad worker line: %v", err)
			continue
		}
		select {
		case p.requests <- msg:
		default:
			logf("discord bridge: request queue full, dropping %s", msg.Op)
		}
	}
}

func (p *discordPlugin) readWorkerLogs(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logf("bot worker: %s", scanner.Text())
	}
}

func (p *discordPlugin) send(msg botMsg) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.stdin == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		logf("discord bridge: write to worker failed: %v", err)
	}
}

// update drains pending worker requests and refreshes the presence
// line. Request handlers run on their own goroutines so a slow
// systemctl call never stalls the coordinator tick.
func (p *discordPlugin) update(ctx context.Context) {
	for {
		select {
		case msg := <-p.requests:
			go p.handleRequest(ctx, msg)
		default:
			p.maybeUpdatePresence()
			return
		}
	}
}

func (p *discordPlugin) handleRequest(ctx context.Context, msg botMsg) {
	switch msg.Op {
	case opGetStatus:
		snap := p.app.states.snapshot()
		p.send(botMsg{Op: opStatusResponse, ID: msg.ID, Lines: statusSummaryLines(snap)})
	case opGetPlayers:
		snap := p.app.states.snapshot()
		lines := make([]string, 0, len(snap.status.players))
		for _, pl := range snap.status.players {
			lines = append(lines, fmt.Sprintf("%s <%s>", pl.name, pl.character))
		}
		p.send(botMsg{Op: opPlayersResponse, ID: msg.ID, Lines: lines})
	case opControlServer:
		action := msg.Action
		switch action {
		case "start", "stop", "restart":
		default:
			p.send(botMsg{Op: opControlResponse, ID: msg.ID, OK: false, Text: "unknown action " + action})
			return
		}
		names := shardNames(loadShards(ctx))
		ok, _, errText := controlShards(ctx, action, names)
		text := action + " all: ok"
		if !ok {
			text = errText
		}
		p.send(botMsg{Op: opControlResponse, ID: msg.ID, OK: ok, Text: text})
	case opUpdateServer:
		ok, text := runUpdater(ctx)
		p.send(botMsg{Op: opControlResponse, ID: msg.ID, OK: ok, Text: text})
	case opAnnounce:
		text := msg.Text
		if msg.Author != "" {
			text = msg.Author + ": " + msg.Text
		}
		p.rememberSent(text)
		ok, reply := sendChatMessage(ctx, "Master", text)
		p.send(botMsg{Op: opControlResponse, ID: msg.ID, OK: ok, Text: reply})
	case opRelayChat:
		text := fmt.Sprintf("[Discord] %s: %s", msg.Author, msg.Text)
		p.rememberSent(text)
		if ok, reply := sendSystemMessage(ctx, "Master", text); !ok {
			logf("discord bridge: relay failed: %s", reply)
		}
	default:
		logf("discord bridge: unknown worker op %q", msg.Op)
	}
}

func statusSummaryLines(snap appState) []string {
	st := snap.status
	running := 0
	for _, sh := range snap.shards {
		if sh.running {
			running++
		}
	}
	return []string{
		fmt.Sprintf("Season: %s", st.season),
		fmt.Sprintf("Day: %s (%s left)", st.day, st.daysLeft),
		fmt.Sprintf("Phase: %s", st.phase),
		fmt.Sprintf("Players: %d", len(st.players)),
		fmt.Sprintf("Shards running: %d/%d", running, len(snap.shards)),
	}
}

func (p *discordPlugin) maybeUpdatePresence() {
	now := time.Now()
	if now.Sub(p.lastPresence) < presenceInterval {
		return
	}
	p.lastPresence = now
	snap := p.app.states.snapshot()
	st := snap.status
	text := fmt.Sprintf("Day %s · %s · %d players", st.day, st.season, len(st.players))
	p.send(botMsg{Op: opUpdatePresence, Text: text})
}

// onChatLines forwards newly appeared chat lines to Discord. The first
// batch after startup is the backlog and is swallowed, not relayed.
func (p *discordPlugin) onChatLines(ctx context.Context, lines []string) {
	p.mu.Lock()
	if !p.synced {
		p.synced = true
		p.lastTail = lines
		p.mu.Unlock()
		return
	}
	fresh := newChatLines(p.lastTail, lines)
	p.lastTail = lines
	p.mu.Unlock()

	for _, line := range fresh {
		if p.skipRelay(line) {
			continue
		}
		tag, text, ok := formatDiscordChat(line)
		if !ok {
			continue
		}
		p.send(botMsg{Op: opSendChat, Text: text})
		if tag == "Join Announcement" {
			// Off the bus callback: the dump's command delays must not
			// stall chat delivery.
			go requestStatusUpdate(ctx, "")
		}
	}
}

// newChatLines returns the suffix of next that was not present at the
// end of prev. The tails overlap because both are cuts of the same log.
func newChatLines(prev, next []string) []string {
	if len(prev) == 0 {
		return next
	}
	last := prev[len(prev)-1]
	for i := len(next) - 1; i >= 0; i-- {
		if next[i] == last {
			return next[i+1:]
		}
	}
	return next
}

// skipRelay drops lines that originated on the Discord side or that are
// engine noise, so nothing echoes back into the channel.
func (p *discordPlugin) skipRelay(line string) bool {
	if strings.Contains(line, "[Discord]") ||
		strings.Contains(line, "[System Message]") ||
		strings.Contains(line, "[Whisper]") {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sent := range p.sentRecently {
		if strings.Contains(line, sent) {
			return true
		}
	}
	return false
}

func (p *discordPlugin) rememberSent(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentRecently = append(p.sentRecently, text)
	if len(p.sentRecently) > sentCacheSize {
		p.sentRecently = p.sentRecently[len(p.sentRecently)-sentCacheSize:]
	}
}

// formatDiscordChat turns a chat-log line into Discord markdown.
func formatDiscordChat(line string) (tag, formatted string, ok bool) {
	m := chatTagRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	tag = m[1]
	rest := strings.TrimSpace(m[3])
	emoji := chatTagEmoji[tag]
	switch tag {
	case "Say":
		name, msg, found := strings.Cut(rest, ": ")
		if !found {
			return tag, fmt.Sprintf("%s %s", emoji, rest), true
		}
		return tag, fmt.Sprintf("%s **%s**: %s", emoji, name, msg), true
	case "Join Announcement":
		return tag, fmt.Sprintf("%s **%s** joined the server", emoji, rest), true
	case "Leave Announcement":
		return tag, fmt.Sprintf("%s **%s** left the server", emoji, rest), true
	}
	return "", "", false
}

func (p *discordPlugin) stop() {
	if p.app != nil {
		p.app.bus.unsubscribe(eventChatMessage, p.chatSub)
	}
	if p.cmd == nil {
		return
	}
	p.send(botMsg{Op: opStop})
	p.writeMu.Lock()
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	p.writeMu.Unlock()

	waited := make(chan struct{})
	go func() {
		p.cmd.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(3 * time.Second):
		p.cmd.Process.Kill()
		<-waited
	}
}
