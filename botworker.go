package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
)

// The bot worker is the Discord half of the bridge. It owns the gateway
// session and speaks the botMsg protocol with the parent over
// stdin/stdout. It holds no game state of its own: every slash command
// turns into a request to the parent and waits for the matching
// response.

type botWorkerConfig struct {
	Token         string `env:"DISCORD_BOT_TOKEN,required"`
	GuildID       string `env:"DISCORD_GUILD_ID"`
	ChatChannelID string `env:"DISCORD_CHAT_CHANNEL_ID"`
}

const requestTimeout = 5 * time.Second

type botWorker struct {
	cfg     botWorkerConfig
	session *discordgo.Session

	outMu sync.Mutex
	out   *json.Encoder

	mu      sync.Mutex
	nextID  int
	pending map[string]chan botMsg
}

// runBotWorker is the -bot-worker entry point. It returns when the
// parent closes stdin or sends STOP.
func runBotWorker() error {
	cfg, err := env.ParseAs[botWorkerConfig]()
	if err != nil {
		return fmt.Errorf("bot worker config: %w", err)
	}

	w := &botWorker{
		cfg:     cfg,
		out:     json.NewEncoder(os.Stdout),
		pending: map[string]chan botMsg{},
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	session.AddHandler(w.onReady)
	session.AddHandler(w.onInteraction)
	session.AddHandler(w.onMessage)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord gateway: %w", err)
	}
	w.session = session
	defer session.Close()

	return w.stdinLoop()
}

func (w *botWorker) send(msg botMsg) {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	if err := w.out.Encode(msg); err != nil {
		fmt.Fprintf(os.Stderr, "encode to parent failed: %v\n", err)
	}
}

// request sends a message upstream and blocks for the matching
// response, correlated by id.
func (w *botWorker) request(msg botMsg) (botMsg, error) {
	w.mu.Lock()
	w.nextID++
	id := strconv.Itoa(w.nextID)
	ch := make(chan botMsg, 1)
	w.pending[id] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
	}()

	msg.ID = id
	w.send(msg)

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(requestTimeout):
		return botMsg{}, errors.New("dashboard did not answer in time")
	}
}

func (w *botWorker) deliver(msg botMsg) {
	w.mu.Lock()
	ch := w.pending[msg.ID]
	w.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

// stdinLoop processes parent commands until stdin closes.
func (w *botWorker) stdinLoop() error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg botMsg
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			fmt.Fprintf(os.Stderr, "bad parent line: %v\n", err)
			continue
		}
		switch msg.Op {
		case opStop:
			return nil
		case opSendChat:
			if w.cfg.ChatChannelID != "" {
				if _, err := w.session.ChannelMessageSend(w.cfg.ChatChannelID, msg.Text); err != nil {
					fmt.Fprintf(os.Stderr, "chat relay failed: %v\n", err)
				}
			}
		case opUpdatePresence:
			if err := w.session.UpdateGameStatus(0, msg.Text); err != nil {
				fmt.Fprintf(os.Stderr, "presence update failed: %v\n", err)
			}
		case opStatusResponse, opPlayersResponse, opControlResponse:
			w.deliver(msg)
		default:
			fmt.Fprintf(os.Stderr, "unknown parent op %q\n", msg.Op)
		}
	}
	return scanner.Err()
}

var slashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "status",
		Description: "Show the current world status",
	},
	{
		Name:        "players",
		Description: "List players currently on the server",
	},
	{
		Name:        "announce",
		Description: "Send an in-game announcement",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "Text to announce",
				Required:    true,
			},
		},
	},
	{
		Name:        "panel",
		Description: "Show the server control panel",
	},
}

func (w *botWorker) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	for _, cmd := range slashCommands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, w.cfg.GuildID, cmd); err != nil {
			fmt.Fprintf(os.Stderr, "register /%s failed: %v\n", cmd.Name, err)
		}
	}
	fmt.Fprintf(os.Stderr, "logged in as %s\n", s.State.User.Username)
}

func (w *botWorker) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		w.onCommand(s, i)
	case discordgo.InteractionMessageComponent:
		w.onComponent(s, i)
	}
}

func (w *botWorker) onCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "status":
		w.deferThenEdit(s, i, func() string {
			resp, err := w.request(botMsg{Op: opGetStatus})
			if err != nil {
				return err.Error()
			}
			return "```\n" + strings.Join(resp.Lines, "\n") + "\n```"
		})
	case "players":
		w.deferThenEdit(s, i, func() string {
			resp, err := w.request(botMsg{Op: opGetPlayers})
			if err != nil {
				return err.Error()
			}
			if len(resp.Lines) == 0 {
				return "Nobody is on the server right now."
			}
			return "```\n" + strings.Join(resp.Lines, "\n") + "\n```"
		})
	case "announce":
		var message string
		for _, opt := range data.Options {
			if opt.Name == "message" {
				message = opt.StringValue()
			}
		}
		author := interactionUser(i)
		w.deferThenEdit(s, i, func() string {
			resp, err := w.request(botMsg{Op: opAnnounce, Author: author, Text: message})
			if err != nil {
				return err.Error()
			}
			if !resp.OK {
				return "Announce failed: " + resp.Text
			}
			return "Announced: " + message
		})
	case "panel":
		w.respondPanel(s, i)
	}
}

var panelButtons = []struct {
	label    string
	customID string
	style    discordgo.ButtonStyle
}{
	{"Start All", "panel_start", discordgo.SuccessButton},
	{"Stop All", "panel_stop", discordgo.DangerButton},
	{"Restart All", "panel_restart", discordgo.PrimaryButton},
	{"Update All", "panel_update", discordgo.SecondaryButton},
}

func (w *botWorker) respondPanel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	components := make([]discordgo.MessageComponent, 0, len(panelButtons))
	for _, b := range panelButtons {
		components = append(components, discordgo.Button{
			Label:    b.label,
			Style:    b.style,
			CustomID: b.customID,
		})
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Server control panel",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: components},
			},
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "panel respond failed: %v\n", err)
	}
}

func (w *botWorker) onComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	var req botMsg
	switch customID {
	case "panel_start":
		req = botMsg{Op: opControlServer, Action: "start"}
	case "panel_stop":
		req = botMsg{Op: opControlServer, Action: "stop"}
	case "panel_restart":
		req = botMsg{Op: opControlServer, Action: "restart"}
	case "panel_update":
		req = botMsg{Op: opUpdateServer}
	default:
		return
	}
	w.deferThenEdit(s, i, func() string {
		resp, err := w.request(req)
		if err != nil {
			return err.Error()
		}
		return resp.Text
	})
}

// deferThenEdit acknowledges the interaction immediately and fills the
// response in once fn returns, keeping within Discord's 3 second ack
// window while the parent does real work.
func (w *botWorker) deferThenEdit(s *discordgo.Session, i *discordgo.InteractionCreate, fn func() string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "interaction ack failed: %v\n", err)
		return
	}
	go func() {
		content := fn()
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: &content,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "interaction edit failed: %v\n", err)
		}
	}()
}

// onMessage relays human messages from the bridge channel into the
// game.
func (w *botWorker) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if w.cfg.ChatChannelID == "" || m.ChannelID != w.cfg.ChatChannelID {
		return
	}
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}
	w.send(botMsg{Op: opRelayChat, Author: m.Author.Username, Text: content})
}

func interactionUser(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return "someone"
}
