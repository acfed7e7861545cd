package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramOwnerID   = "TELEGRAM_OWNER_ID"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Channels  ChannelsConfig  `json:"channels"`
	Responder ResponderConfig `json:"responder"`
	Gateway   GatewayConfig   `json:"gateway"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
//
// OwnerID is the chat that receives key-phrase notifications; when empty,
// owner notifications are disabled.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	Proxy     string   `json:"proxy,omitempty"`
	OwnerID   string   `json:"owner_id,omitempty"`
	AllowFrom []string `json:"allow_from,omitempty"`
}

// KeyPhrase is one configured phrase with its fixed reply.
type KeyPhrase struct {
	Phrase        string `json:"phrase"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	Reply         string `json:"reply"`
}

// ResponderConfig holds the routing rules evaluated for every inbound message.
//
// KeyPhrases are scanned in order; when several phrases would match the same
// text the earliest entry wins.
type ResponderConfig struct {
	KeyPhrases      []KeyPhrase       `json:"key_phrases"`
	FallbackReplies []string          `json:"fallback_replies"`
	Commands        map[string]string `json:"commands,omitempty"`
}

// GatewayConfig configures HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultCommands are installed for any command name the config leaves unset.
func DefaultCommands() map[string]string {
	return map[string]string{
		"start": "Hello! I'm a bot that responds to messages. Feel free to chat with me!\n\nUse /help to see available commands.",
		"help":  "Available commands:\n/start - Start the bot\n/help - Show this help message\n\nJust send me any message and I'll respond!",
	}
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyCommandDefaults(&cfg.Responder)

	if err := cfg.Responder.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects responder configurations that cannot route safely.
//
// An empty key phrase would match every message, and an empty fallback list
// would leave unmatched messages with no reply at all, so both fail startup.
func (rc ResponderConfig) Validate() error {
	if len(rc.FallbackReplies) == 0 {
		return errors.New("responder.fallback_replies must not be empty")
	}
	for i, reply := range rc.FallbackReplies {
		if strings.TrimSpace(reply) == "" {
			return fmt.Errorf("responder.fallback_replies[%d] is empty", i)
		}
	}

	for i, entry := range rc.KeyPhrases {
		if strings.TrimSpace(entry.Phrase) == "" {
			return fmt.Errorf("responder.key_phrases[%d].phrase is empty", i)
		}
		if strings.TrimSpace(entry.Reply) == "" {
			return fmt.Errorf("responder.key_phrases[%d].reply is empty", i)
		}
	}

	for name, response := range rc.Commands {
		if strings.TrimSpace(name) == "" {
			return errors.New("responder.commands contains an empty command name")
		}
		if strings.TrimSpace(response) == "" {
			return fmt.Errorf("responder.commands[%q] has an empty response", name)
		}
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}

	if ownerID := strings.TrimSpace(os.Getenv(envTelegramOwnerID)); ownerID != "" {
		cfg.Channels.Telegram.OwnerID = ownerID
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}
}

// applyCommandDefaults fills in built-in responses for commands the file omits.
func applyCommandDefaults(rc *ResponderConfig) {
	if rc.Commands == nil {
		rc.Commands = make(map[string]string, 2)
	}

	for name, response := range DefaultCommands() {
		if _, ok := rc.Commands[name]; !ok {
			rc.Commands[name] = response
		}
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is PHRASEBOT_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("PHRASEBOT_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("PHRASEBOT_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
