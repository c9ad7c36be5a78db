package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

// FILENAME is the ini file looked for when no explicit path is given.
const FILENAME = "d2sedit.ini"

// Config holds application configuration.
type Config struct {
	// Dir is where relative save file names are resolved.
	Dir string
	// Stash is the file an editing session lives in between commands.
	Stash string
	// Backup keeps a copy of the original file on every save.
	Backup bool
	// History is the sqlite edit journal.  Empty disables it.
	History string
	// Settle is how long the watcher waits after a write before reading the file,
	// so the game has finished with it.
	Settle time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	wd, _ := os.Getwd()
	return &Config{
		Dir:    wd,
		Stash:  "d2sedit.tmp",
		Backup: true,
		Settle: 2 * time.Second,
	}
}

// Find returns the ini file to use: explicit path first, then the working directory,
// then the user config directory.  Empty if there is none.
func Find(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(FILENAME); err == nil {
		return FILENAME
	}
	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "d2sedit", FILENAME)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load builds the configuration: defaults, then the ini file (if any), then the environment.
// A missing ini file is fine unless it was asked for explicitly.
func Load(explicit string) (*Config, error) {
	cfg := DefaultConfig()

	path := Find(explicit)
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit == "" && errors.Is(err, os.ErrNotExist) {
				return cfg.applyEnv(), nil
			}
			return nil, err
		}
	}

	return cfg.applyEnv(), nil
}

func (cfg *Config) loadFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Classic read of values, default section can be represented as empty string
	sec := file.Section("")
	if v := sec.Key("dir").String(); v != "" {
		cfg.Dir = v
	}
	if v := sec.Key("stash").String(); v != "" {
		cfg.Stash = v
	}
	if sec.HasKey("backup") {
		b, err := sec.Key("backup").Bool()
		if err != nil {
			return fmt.Errorf("config %s: backup: %w", path, err)
		}
		cfg.Backup = b
	}
	cfg.History = sec.Key("history").MustString(cfg.History)
	if sec.HasKey("settle") {
		d, err := sec.Key("settle").Duration()
		if err != nil {
			return fmt.Errorf("config %s: settle: %w", path, err)
		}
		cfg.Settle = d
	}
	return nil
}

func (cfg *Config) applyEnv() *Config {
	if v := os.Getenv("D2SEDIT_DIR"); v != "" {
		cfg.Dir = v
	}
	if v := os.Getenv("D2SEDIT_STASH"); v != "" {
		cfg.Stash = v
	}
	if v := os.Getenv("D2SEDIT_HISTORY"); v != "" {
		cfg.History = v
	}
	return cfg
}

// Resolve turns a save file name into a path, relative names being taken from Dir.
func (cfg *Config) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.Dir, name)
}
