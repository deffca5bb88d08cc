// Package config provides configuration loading and validation for the
// comment bot. It reads config.yaml, applies defaults, and allows overrides
// through BOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the full application configuration: logging, the shared
// completion service, the state store, the optional archive, and one entry
// per bot identity.
type Config struct {
	Log      LogConfig     `mapstructure:"log"`
	LLM      LLMConfig     `mapstructure:"llm"`
	Store    StoreConfig   `mapstructure:"store"`
	Archive  ArchiveConfig `mapstructure:"archive"`
	Bots     []BotConfig   `mapstructure:"bots"     validate:"required,min=1,dive"`
	Messages Messages      `mapstructure:"messages"`
}

// LogConfig controls log verbosity and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// LLMConfig describes the completion service shared by all bot identities.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"    validate:"oneof=openai gemini"`
	APIKey      string        `mapstructure:"api_key"     validate:"required"`
	BaseURL     string        `mapstructure:"base_url"    validate:"url"`
	Model       string        `mapstructure:"model"       validate:"required"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int           `mapstructure:"max_tokens"  validate:"min=1"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	ProxyURL    string        `mapstructure:"proxy_url"`
}

// StoreConfig describes the per-identity JSON state store.
type StoreConfig struct {
	DataDir      string `mapstructure:"data_dir"      validate:"required"`
	HistoryLimit int    `mapstructure:"history_limit" validate:"min=1"`
}

// ArchiveConfig describes the optional SQLite archive of processed messages.
type ArchiveConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

// BotConfig is one bot identity: token, display name, admin allow-list, and
// behavior flags. The flags are pointers so an absent key keeps its default
// (enabled) while an explicit `false` in the file turns the behavior off.
type BotConfig struct {
	Token          string  `mapstructure:"token" validate:"required"`
	Name           string  `mapstructure:"name"`
	AdminIDs       []int64 `mapstructure:"admin_ids"`
	History        *bool   `mapstructure:"history"`
	ReplyToMessage *bool   `mapstructure:"reply_to_message"`
	DeletePrevious *bool   `mapstructure:"delete_previous"`
	ChannelID      int64   `mapstructure:"channel_id"`
}

// HistoryEnabled reports whether rolling history is supplied as LLM context
// for this identity. Defaults to true.
func (b BotConfig) HistoryEnabled() bool { return b.History == nil || *b.History }

// ReplyEnabled reports whether comments are sent as replies to the triggering
// message rather than plain messages. Defaults to true.
func (b BotConfig) ReplyEnabled() bool { return b.ReplyToMessage == nil || *b.ReplyToMessage }

// DeletePreviousEnabled reports whether the bot removes its previous comment
// in a chat before posting a new one. Defaults to true.
func (b BotConfig) DeletePreviousEnabled() bool {
	return b.DeletePrevious == nil || *b.DeletePrevious
}

// IsAdmin reports whether userID may run mutating commands on this identity.
// An empty admin list means open mode: everyone is authorized.
func (b BotConfig) IsAdmin(userID int64) bool {
	if len(b.AdminIDs) == 0 {
		return true
	}
	for _, id := range b.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Messages holds all user-facing message texts.
type Messages struct {
	Start       string `mapstructure:"start"        validate:"required"`
	PrivateHint string `mapstructure:"private_hint" validate:"required"`
	RoleSet     string `mapstructure:"role_set"     validate:"required"`
	RoleUsage   string `mapstructure:"role_usage"   validate:"required"`
	RoleCurrent string `mapstructure:"role_current" validate:"required"`
	RoleDeleted string `mapstructure:"role_deleted" validate:"required"`
	Denied      string `mapstructure:"denied"       validate:"required"`
	Apology     string `mapstructure:"apology"      validate:"required"`
}

// Load reads configuration from the given YAML file, applies defaults,
// merges BOT_* environment variables, and validates the result.
// A missing config file is not an error; environment variables and defaults
// must then supply everything required.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyBotDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 500)
	v.SetDefault("llm.timeout", 2*time.Minute)

	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("store.history_limit", 20)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "archive.db")
	v.SetDefault("archive.retention", 30*24*time.Hour)
	v.SetDefault("archive.cleanup_schedule", "0 4 * * *")

	v.SetDefault("messages.start", "Hi! I comment on messages in group chats.\n\n"+
		"Commands:\n"+
		"/setrole <text> - set this chat's persona\n"+
		"/getrole - show the current persona\n"+
		"/deleterole - reset to the default persona\n\n"+
		"Add me to a group and I'll comment on the messages!")
	v.SetDefault("messages.private_hint", "I work in group chats! Add me to a group so I can comment on messages.\n\nUse /start for the command list.")
	v.SetDefault("messages.role_set", "Persona set!\n\n%s")
	v.SetDefault("messages.role_usage", "Usage: /setrole <persona text>\n\nExample:\n/setrole You are an experienced coach who gives motivating comments on people's goals")
	v.SetDefault("messages.role_current", "Current persona:\n\n%s")
	v.SetDefault("messages.role_deleted", "Persona reset to the default.")
	v.SetDefault("messages.denied", "You are not allowed to run this command.")
	v.SetDefault("messages.apology", "Sorry, something went wrong while generating a comment.")
}

func applyBotDefaults(cfg *Config) {
	for i := range cfg.Bots {
		if cfg.Bots[i].Name == "" {
			cfg.Bots[i].Name = fmt.Sprintf("Bot%d", i+1)
		}
	}
}
