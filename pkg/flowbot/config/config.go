// Package config loads bot deployment configuration from YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BotConfig is the deployment configuration of one bot.
type BotConfig struct {
	// Name is the display name of the bot.
	Name string `yaml:"name" json:"name"`
	// Token authenticates against the messaging platform.
	Token string `yaml:"token" json:"token"`
	// AdminChatID receives admin-targeted notifications.
	AdminChatID string `yaml:"admin_chat_id" json:"admin_chat_id"`

	// Store selects the record store backend.
	Store StoreConfig `yaml:"store" json:"store"`

	// LLM configures the completion client for llm-prompt nodes.
	LLM LLMConfig `yaml:"llm" json:"llm"`
}

// StoreConfig selects and locates the record store backend.
type StoreConfig struct {
	// Backend is "memory", "json" or "sqlite". Empty means "json".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the backing file for the json and sqlite backends.
	Path string `yaml:"path" json:"path"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url" json:"base_url"`
	Model   string `yaml:"model" json:"model"`
}

// FromFile loads configuration from a file, detecting the format from the
// extension: .yaml and .yml parse as YAML, .json as JSON. Other extensions
// are rejected.
func FromFile(path string) (*BotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

// FromYAML parses YAML configuration data.
func FromYAML(data []byte) (*BotConfig, error) {
	var cfg BotConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// FromJSON parses JSON configuration data.
func FromJSON(data []byte) (*BotConfig, error) {
	var cfg BotConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *BotConfig) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "json"
	}
	if c.Store.Path == "" {
		c.Store.Path = "bot_database.json"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-3.5-turbo"
	}
}
