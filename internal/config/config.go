// Package config loads backdrop settings from defaults, an optional YAML
// file and BACKDROP_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all backdrop configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"   envPrefix:"SERVER_"`
	Store    StoreConfig    `yaml:"store"    envPrefix:"STORE_"`
	Logging  LoggingConfig  `yaml:"logging"  envPrefix:"LOG_"`
	Media    MediaConfig    `yaml:"media"    envPrefix:"MEDIA_"`
	Contacts ContactsConfig `yaml:"contacts" envPrefix:"CONTACTS_"`
	Messages MessagesConfig `yaml:"messages" envPrefix:"MESSAGES_"`
	Team     TeamConfig     `yaml:"team"     envPrefix:"TEAM_"`

	// Permissions lists the capability classes the user has granted
	// (camera, photo_library, contacts).
	Permissions []string `yaml:"permissions" env:"PERMISSIONS" envSeparator:","`
}

// ServerConfig configures the public and admin HTTP listeners.
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"PORT"`
	AdminPort       int           `yaml:"admin_port"       env:"ADMIN_PORT"`
	PublicDir       string        `yaml:"public_dir"       env:"PUBLIC_DIR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StoreConfig locates the SQLite datastore.
type StoreConfig struct {
	// Path is a directory holding backdrop.db, or ":memory:".
	Path string `yaml:"path" env:"PATH"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEVEL"` // debug, info, warn, error
}

// MediaConfig configures where acquired images live.
type MediaConfig struct {
	// UploadDir receives images picked through the upload form.
	UploadDir string `yaml:"upload_dir" env:"UPLOAD_DIR"`
	// InboxDir is watched; images dropped there become the background.
	// Empty disables the watcher.
	InboxDir string `yaml:"inbox_dir" env:"INBOX_DIR"`
	// MaxUploadBytes caps a single upload.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

// ContactsConfig locates the contacts directory file.
type ContactsConfig struct {
	File string `yaml:"file" env:"FILE"`
}

// MessagesConfig bounds the recorded message history.
type MessagesConfig struct {
	Limit int `yaml:"limit" env:"LIMIT"`
}

// TeamConfig is the team shown on the About tab.
type TeamConfig struct {
	Name    string   `yaml:"name"    env:"NAME"`
	Members []string `yaml:"members" env:"MEMBERS" envSeparator:","`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			AdminPort:       8383,
			PublicDir:       "public",
			ShutdownTimeout: 15 * time.Second,
		},
		Store:    StoreConfig{Path: "."},
		Logging:  LoggingConfig{Level: "info"},
		Media:    MediaConfig{UploadDir: "media", MaxUploadBytes: 10 << 20},
		Contacts: ContactsConfig{File: "contacts.yaml"},
		Messages: MessagesConfig{Limit: 10},
		Team: TeamConfig{
			Name:    "Equipo 1",
			Members: []string{"Juan Pérez", "María García"},
		},
		Permissions: []string{"camera", "photo_library", "contacts"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// optional
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "BACKDROP_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Server.AdminPort <= 0 || c.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port %d", c.Server.AdminPort)
	}
	if c.Server.Port == c.Server.AdminPort {
		return fmt.Errorf("server and admin ports must differ (both %d)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout must not be negative")
	}
	if c.Messages.Limit <= 0 {
		return fmt.Errorf("messages limit must be positive, got %d", c.Messages.Limit)
	}
	if c.Media.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.Media.MaxUploadBytes)
	}
	return nil
}
