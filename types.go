package main

import "time"

type config struct {
	interval   time.Duration
	cmdTimeout time.Duration
	chatLines  int
	logLines   int
	botMode    bool
	botWorker  bool
	game       gameConfig
}

// gameConfig mirrors ~/.config/dontstarve/config plus derived paths.
type gameConfig struct {
	dstDir      string
	installDir  string
	clusterName string
	branch      string
}

type shard struct {
	name    string
	running bool
	enabled bool
}

type player struct {
	kuID      string
	name      string
	character string
}

type shardStatus struct {
	season   string
	day      string
	daysLeft string
	phase    string
	players  []player
	errText  string
}

type serverStatus struct {
	season   string
	day      string
	daysLeft string
	phase    string
	players  []player
	shards   map[string]shardStatus
}

func unknownStatus() serverStatus {
	return serverStatus{
		season:   "Unknown",
		day:      "Unknown",
		daysLeft: "Unknown",
		phase:    "Unknown",
		shards:   map[string]shardStatus{},
	}
}

func blankStatus() serverStatus {
	return serverStatus{
		season:   "---",
		day:      "---",
		daysLeft: "---",
		phase:    "---",
		shards:   map[string]shardStatus{},
	}
}

type modEntry struct {
	id      string
	name    string
	enabled bool
}

type modStatus struct {
	id           string
	name         string
	enabled      bool
	loadedInGame bool
	errorCount   int
	lastError    string
	configValid  bool
	optionCount  int
	configText   string
}

type optionSpec struct {
	name    string
	label   string
	hover   string
	def     any
	choices []optionChoice
}

type optionChoice struct {
	description string
	data        string
}

type viewerKind int

const (
	viewerNone viewerKind = iota
	viewerLogs
	viewerMods
	viewerSettings
)

type promptKind int

const (
	promptNone promptKind = iota
	promptChat
	promptAddMod
	promptToken
)

type appState struct {
	shards       []shard
	status       serverStatus
	chatLines    []string
	modList      []modStatus
	working      bool
	needRedraw   bool
	lastErr      string
	lastInfo     string
	shardIndex   int
	actionIndex  int
	globalIndex  int
	viewer       viewerKind
	viewerShard  string
	viewerLines  []string
	viewerScroll int
	viewerFollow bool
	modIndex     int
	prompt       promptKind
	promptBuf    []rune

	settingsClusters []string
	settingsCluster  int
	settingsBranch   int

	lastShardRefresh  time.Time
	lastStatusRefresh time.Time
	lastStatusPoll    time.Time
	lastChatRead      time.Time
	lastDraw          time.Time

	masterOfflineCount int
}
