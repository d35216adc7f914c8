package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"toolprov/internal/toolchain"
)

// EnvPrefix is prepended to every settings key when read from the
// environment, e.g. TOOLPROV_RESOLVE_TIMEOUT.
const EnvPrefix = "TOOLPROV"

// Settings are the per-run knobs that are not part of a catalog entry.
type Settings struct {
	Owner           string        `mapstructure:"owner"`
	Platform        string        `mapstructure:"platform"`
	ResolveTimeout  time.Duration `mapstructure:"resolve_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	StagingDir      string        `mapstructure:"staging_dir"`
	PasswdFile      string        `mapstructure:"passwd_file"`
	GroupFile       string        `mapstructure:"group_file"`
	SkipCurrent     bool          `mapstructure:"skip_current"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFile         string        `mapstructure:"log_file"`
}

// settingKeys maps each key to the CLI flag that overrides it.
var settingKeys = map[string]string{
	"owner":            "owner",
	"platform":         "platform",
	"resolve_timeout":  "resolve-timeout",
	"download_timeout": "download-timeout",
	"staging_dir":      "staging-dir",
	"passwd_file":      "passwd-file",
	"group_file":       "group-file",
	"skip_current":     "skip-current",
	"log_level":        "log-level",
	"log_file":         "log-file",
}

// DefaultSettings returns the settings used when nothing overrides them.
func DefaultSettings() Settings {
	return Settings{
		ResolveTimeout:  toolchain.DefaultResolveTimeout,
		DownloadTimeout: toolchain.DefaultDownloadTimeout,
		PasswdFile:      toolchain.DefaultPasswdPath,
		GroupFile:       toolchain.DefaultGroupPath,
		LogLevel:        "info",
	}
}

// LoadSettings layers flags over TOOLPROV_* environment variables over the
// settings file over defaults. settingsFile may be empty, but a named file
// must exist. Only flags the user actually set take precedence.
func LoadSettings(settingsFile string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("owner", defaults.Owner)
	v.SetDefault("platform", defaults.Platform)
	v.SetDefault("resolve_timeout", defaults.ResolveTimeout)
	v.SetDefault("download_timeout", defaults.DownloadTimeout)
	v.SetDefault("staging_dir", defaults.StagingDir)
	v.SetDefault("passwd_file", defaults.PasswdFile)
	v.SetDefault("group_file", defaults.GroupFile)
	v.SetDefault("skip_current", defaults.SkipCurrent)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_file", defaults.LogFile)

	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", settingsFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range settingKeys {
			flag := flags.Lookup(name)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Settings{}, fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.ResolveTimeout <= 0 {
		return Settings{}, fmt.Errorf("resolve_timeout must be positive, got %s", s.ResolveTimeout)
	}
	if s.DownloadTimeout <= 0 {
		return Settings{}, fmt.Errorf("download_timeout must be positive, got %s", s.DownloadTimeout)
	}
	return s, nil
}

// Options converts settings into provisioner options.
func (s Settings) Options() toolchain.Options {
	return toolchain.Options{
		Owner:           toolchain.ParseOwner(s.Owner),
		Identity:        toolchain.IdentityDB{PasswdPath: s.PasswdFile, GroupPath: s.GroupFile},
		ResolveTimeout:  s.ResolveTimeout,
		DownloadTimeout: s.DownloadTimeout,
		StagingDir:      s.StagingDir,
		SkipCurrent:     s.SkipCurrent,
	}
}
