package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

type fileConfig struct {
	Server    string                `toml:"server"`
	Username  string                `toml:"username"`
	Password  string                `toml:"password"`
	TZ        string                `toml:"tz"`
	WeekStart string                `toml:"week_start"`
	Output    string                `toml:"output"`
	Fields    string                `toml:"fields"`
	Timeout   string                `toml:"timeout"`
	Profile   string                `toml:"profile"`
	Profiles  map[string]fileConfig `toml:"profiles"`
}

// Precedence, lowest to highest: user config, project config, --config file,
// MYCAL_* environment, explicit flags.
func resolveGlobalOptions(cmd *cobra.Command, defaults *globalOptions) (*globalOptions, error) {
	resolved := *defaults

	profile := firstNonEmpty(env("MYCAL_PROFILE"), defaults.Profile)
	if flagValueChanged(cmd, "profile") {
		profile = defaults.Profile
	}
	if profile == "" {
		profile = "default"
	}
	resolved.Profile = profile

	userPath := defaultUserConfigPath()
	projectPath := ".mycal.toml"
	configPath := firstNonEmpty(env("MYCAL_CONFIG"), userPath)
	if flagValueChanged(cmd, "config") {
		configPath = defaults.Config
	}

	if cfg, ok := readConfigFile(userPath); ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if cfg, ok := readConfigFile(projectPath); ok {
		applyFileConfig(&resolved, cfg, profile)
	}
	if configPath != "" && configPath != userPath && configPath != projectPath {
		if cfg, ok := readConfigFile(configPath); ok {
			applyFileConfig(&resolved, cfg, profile)
		}
	}

	applyEnv(&resolved)
	applyFlags(cmd, &resolved, defaults)

	if resolved.Config == "" {
		resolved.Config = configPath
	}
	return &resolved, nil
}

func applyFileConfig(dst *globalOptions, cfg fileConfig, profile string) {
	if p, ok := cfg.Profiles[profile]; ok {
		cfg = mergeFileConfig(cfg, p)
	}
	if cfg.Server != "" {
		dst.Server = cfg.Server
	}
	if cfg.Username != "" {
		dst.Username = cfg.Username
	}
	if cfg.Password != "" {
		dst.Password = cfg.Password
	}
	if cfg.TZ != "" {
		dst.TZ = cfg.TZ
	}
	if cfg.WeekStart != "" {
		dst.WeekStart = cfg.WeekStart
	}
	if cfg.Fields != "" {
		dst.Fields = cfg.Fields
	}
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil {
			dst.Timeout = d
		}
	}
	applyOutputMode(dst, cfg.Output)
}

func mergeFileConfig(base, overlay fileConfig) fileConfig {
	if overlay.Server != "" {
		base.Server = overlay.Server
	}
	if overlay.Username != "" {
		base.Username = overlay.Username
	}
	if overlay.Password != "" {
		base.Password = overlay.Password
	}
	if overlay.TZ != "" {
		base.TZ = overlay.TZ
	}
	if overlay.WeekStart != "" {
		base.WeekStart = overlay.WeekStart
	}
	if overlay.Output != "" {
		base.Output = overlay.Output
	}
	if overlay.Fields != "" {
		base.Fields = overlay.Fields
	}
	if overlay.Timeout != "" {
		base.Timeout = overlay.Timeout
	}
	if overlay.Profile != "" {
		base.Profile = overlay.Profile
	}
	return base
}

func applyOutputMode(dst *globalOptions, mode string) {
	switch strings.ToLower(mode) {
	case "json":
		dst.JSON, dst.JSONL, dst.Plain = true, false, false
	case "jsonl":
		dst.JSON, dst.JSONL, dst.Plain = false, true, false
	case "plain":
		dst.JSON, dst.JSONL, dst.Plain = false, false, true
	}
}

func applyEnv(dst *globalOptions) {
	if v := env("MYCAL_SERVER"); v != "" {
		dst.Server = v
	}
	if v := env("MYCAL_USERNAME"); v != "" {
		dst.Username = v
	}
	if v := env("MYCAL_PASSWORD"); v != "" {
		dst.Password = v
	}
	if v := env("MYCAL_TIMEZONE"); v != "" {
		dst.TZ = v
	}
	if v := env("MYCAL_WEEK_START"); v != "" {
		dst.WeekStart = v
	}
	if v := env("MYCAL_FIELDS"); v != "" {
		dst.Fields = v
	}
	if v := env("MYCAL_OUTPUT"); v != "" {
		applyOutputMode(dst, v)
	}
}

func applyFlags(cmd *cobra.Command, dst, fromFlags *globalOptions) {
	copyIfChanged(cmd, "json", func() { dst.JSON = fromFlags.JSON })
	copyIfChanged(cmd, "jsonl", func() { dst.JSONL = fromFlags.JSONL })
	copyIfChanged(cmd, "plain", func() { dst.Plain = fromFlags.Plain })
	copyIfChanged(cmd, "fields", func() { dst.Fields = fromFlags.Fields })
	copyIfChanged(cmd, "quiet", func() { dst.Quiet = fromFlags.Quiet })
	copyIfChanged(cmd, "verbose", func() { dst.Verbose = fromFlags.Verbose })
	copyIfChanged(cmd, "no-color", func() { dst.NoColor = fromFlags.NoColor })
	copyIfChanged(cmd, "profile", func() { dst.Profile = fromFlags.Profile })
	copyIfChanged(cmd, "config", func() { dst.Config = fromFlags.Config })
	copyIfChanged(cmd, "server", func() { dst.Server = fromFlags.Server })
	copyIfChanged(cmd, "username", func() { dst.Username = fromFlags.Username })
	copyIfChanged(cmd, "password", func() { dst.Password = fromFlags.Password })
	copyIfChanged(cmd, "tz", func() { dst.TZ = fromFlags.TZ })
	copyIfChanged(cmd, "week-start", func() { dst.WeekStart = fromFlags.WeekStart })
	copyIfChanged(cmd, "timeout", func() { dst.Timeout = fromFlags.Timeout })
	copyIfChanged(cmd, "schema-version", func() { dst.SchemaVersion = fromFlags.SchemaVersion })

	// If exactly one output mode flag is explicitly set, it overrides
	// env/config output mode.
	modeSet := 0
	if flagValueChanged(cmd, "json") && fromFlags.JSON {
		modeSet++
	}
	if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
		modeSet++
	}
	if flagValueChanged(cmd, "plain") && fromFlags.Plain {
		modeSet++
	}
	if modeSet == 1 {
		if flagValueChanged(cmd, "json") && fromFlags.JSON {
			applyOutputMode(dst, "json")
		}
		if flagValueChanged(cmd, "jsonl") && fromFlags.JSONL {
			applyOutputMode(dst, "jsonl")
		}
		if flagValueChanged(cmd, "plain") && fromFlags.Plain {
			applyOutputMode(dst, "plain")
		}
	}
}

func copyIfChanged(cmd *cobra.Command, name string, fn func()) {
	if flagValueChanged(cmd, name) {
		fn()
	}
}

func flagValueChanged(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return false
}

func readConfigFile(path string) (fileConfig, bool) {
	if strings.TrimSpace(path) == "" {
		return fileConfig{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, false
	}
	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, false
	}
	return cfg, true
}

func defaultUserConfigPath() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "mycal", "config.toml")
	}
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "mycal", "config.toml")
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
