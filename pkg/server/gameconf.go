package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GameConf holds server and world configuration, loaded from YAML.
type GameConf struct {
	// --- Identity ---
	WorldName string `yaml:"world_name"`
	Port      int    `yaml:"port"`

	// --- World ---
	TickInterval int     `yaml:"tick_interval"` // Milliseconds between clock ticks
	InitialNPCs  int     `yaml:"initial_npcs"`  // 0 = population at the first tick
	DecayTicks   int     `yaml:"decay_ticks"`   // Ticks a corpse lasts
	RoomLogSize  int     `yaml:"room_log_size"` // Turns kept per room in memory
	SuggestVerbs bool    `yaml:"suggest_verbs"` // "Did you mean" on unknown verbs
	NPCActProb   float64 `yaml:"npc_act_prob"`  // Chance an NPC acts each tick
	ScriptDir    string  `yaml:"script_dir"`    // Directory of NPC policy scripts
	ContentPath  string  `yaml:"content_path"`  // YAML content pack for a fresh world
	WatchContent bool    `yaml:"watch_content"` // Tell wizards when the pack changes on disk

	// --- Persistence ---
	BoltPath         string `yaml:"bolt_path"`
	AutosaveInterval int    `yaml:"autosave_interval"` // Seconds, 0 = disabled
	ArchiveDir       string `yaml:"archive_dir"`       // Archive output directory
	ArchiveRetain    int    `yaml:"archive_retain"`    // Keep last N archives, 0 = unlimited
	SQLDatabase      string `yaml:"sql_database"`      // SQLite scrollback, empty = disabled
	SQLTimeout       int    `yaml:"sql_timeout"`       // Busy timeout in seconds

	ScrollbackRetention int `yaml:"scrollback_retention"` // Seconds of room history kept in SQLite

	// --- Sessions ---
	IdleTimeout     int      `yaml:"idle_timeout"`      // Seconds before an idle telnet session ends
	Charset         string   `yaml:"charset"`           // Telnet output charset, e.g. "CP437"
	ReplyPoll       int      `yaml:"reply_poll"`        // Milliseconds between reply polls
	ReplyTimeout    int      `yaml:"reply_timeout"`     // Longest observe wait in seconds
	Wizards         []string `yaml:"wizards"`           // Account names with builder commands
	AllowCreate     bool     `yaml:"allow_create"`      // Accept "create" at the login screen
	MaxLoginRetries int      `yaml:"max_login_retries"` // Failed logins before disconnect

	// --- Web ---
	WebEnabled     bool     `yaml:"web_enabled"`
	WebPort        int      `yaml:"web_port"`
	WebHost        string   `yaml:"web_host"`
	WebCORSOrigins []string `yaml:"web_cors_origins"`
	WebRateLimit   int      `yaml:"web_rate_limit"` // Requests per minute per IP
	JWTSecret      string   `yaml:"jwt_secret"`     // Generated at startup when empty
	JWTExpiry      int      `yaml:"jwt_expiry"`     // Seconds
	WebCertFile    string   `yaml:"web_cert_file"`  // PEM certificate, with web_key_file
	WebKeyFile     string   `yaml:"web_key_file"`
	WebCertDir     string   `yaml:"web_cert_dir"` // Self-signed certificate directory
}

// DefaultGameConf returns a GameConf with working defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		WorldName:           "graphworld",
		Port:                4000,
		TickInterval:        5000,
		DecayTicks:          20,
		RoomLogSize:         50,
		SuggestVerbs:        true,
		NPCActProb:          0.3,
		ScriptDir:           "scripts",
		ContentPath:         "content/keep.yaml",
		BoltPath:            "data/world.bolt",
		AutosaveInterval:    300,
		ArchiveDir:          "backups",
		ArchiveRetain:       10,
		SQLTimeout:          5,
		ScrollbackRetention: 86400,
		IdleTimeout:         3600,
		ReplyPoll:           250,
		ReplyTimeout:        30,
		AllowCreate:         true,
		MaxLoginRetries:     3,
		WebEnabled:          true,
		WebPort:             8080,
		WebRateLimit:        120,
		JWTExpiry:           86400,
	}
}

// LoadGameConf loads a YAML config file over the defaults. Relative paths
// in the file are resolved against the file's directory.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for _, p := range []*string{&gc.ScriptDir, &gc.ContentPath, &gc.BoltPath, &gc.ArchiveDir, &gc.SQLDatabase, &gc.WebCertFile, &gc.WebKeyFile, &gc.WebCertDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	return gc, gc.Validate()
}

// ApplyEnv overrides fields from WORLD_* environment variables. lookup is
// os.LookupEnv outside tests.
func (gc *GameConf) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = parseBool(v)
		}
	}

	str("WORLD_NAME", &gc.WorldName)
	num("WORLD_PORT", &gc.Port)
	num("WORLD_TICK_INTERVAL", &gc.TickInterval)
	num("WORLD_INITIAL_NPCS", &gc.InitialNPCs)
	str("WORLD_CONTENT", &gc.ContentPath)
	str("WORLD_SCRIPT_DIR", &gc.ScriptDir)
	str("WORLD_BOLT", &gc.BoltPath)
	str("WORLD_ARCHIVE_DIR", &gc.ArchiveDir)
	num("WORLD_ARCHIVE_RETAIN", &gc.ArchiveRetain)
	num("WORLD_AUTOSAVE_INTERVAL", &gc.AutosaveInterval)
	str("WORLD_SQLDB", &gc.SQLDatabase)
	str("WORLD_CHARSET", &gc.Charset)
	flag("WORLD_WEB", &gc.WebEnabled)
	num("WORLD_WEB_PORT", &gc.WebPort)
	str("WORLD_JWT_SECRET", &gc.JWTSecret)
	if v, ok := lookup("WORLD_WIZARDS"); ok && v != "" {
		gc.Wizards = nil
		for _, w := range strings.Split(v, ",") {
			if w = strings.TrimSpace(w); w != "" {
				gc.Wizards = append(gc.Wizards, w)
			}
		}
	}
}

// Validate rejects settings the server cannot run with.
func (gc *GameConf) Validate() error {
	if gc.TickInterval <= 0 {
		return fmt.Errorf("gameconf: tick_interval must be positive, got %d", gc.TickInterval)
	}
	if gc.NPCActProb < 0 || gc.NPCActProb > 1 {
		return fmt.Errorf("gameconf: npc_act_prob must be within [0,1], got %v", gc.NPCActProb)
	}
	if gc.ReplyPoll <= 0 || gc.ReplyTimeout <= 0 {
		return fmt.Errorf("gameconf: reply_poll and reply_timeout must be positive")
	}
	if gc.Charset != "" {
		if _, err := lookupCharset(gc.Charset); err != nil {
			return fmt.Errorf("gameconf: %w", err)
		}
	}
	return nil
}

// IsWizard reports whether an account name is listed as a wizard.
func (gc *GameConf) IsWizard(name string) bool {
	for _, w := range gc.Wizards {
		if strings.EqualFold(w, name) {
			return true
		}
	}
	return false
}

// Tick returns the clock interval.
func (gc *GameConf) Tick() time.Duration {
	return time.Duration(gc.TickInterval) * time.Millisecond
}

// PollInterval returns the reply polling interval.
func (gc *GameConf) PollInterval() time.Duration {
	return time.Duration(gc.ReplyPoll) * time.Millisecond
}

// PollTimeout returns the longest reply wait.
func (gc *GameConf) PollTimeout() time.Duration {
	return time.Duration(gc.ReplyTimeout) * time.Second
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "true" || s == "1" || s == "on"
}
