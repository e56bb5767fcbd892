package workspace

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/crateprune/crateprune/pkg/errors"
)

// ConfigFile is the optional per-workspace configuration file name.
const ConfigFile = "crateprune.toml"

// Config holds workspace-level settings read from crateprune.toml.
// Zero values mean "use the tool defaults"; CLI flags override file values.
type Config struct {
	// Exclude lists package names to leave out of the check.
	Exclude []string `toml:"exclude"`
	// Jobs caps the number of parallel compile tasks.
	Jobs int `toml:"jobs"`
	// Color selects output coloring: "auto", "always", or "never".
	Color string `toml:"color"`
	// SkipBuildDeps disables checking of the build-dependencies category.
	SkipBuildDeps bool `toml:"skip-build-deps"`
}

// LoadConfig reads crateprune.toml from the workspace root.
// A missing file is not an error and yields the zero Config.
func LoadConfig(dir string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(errors.ErrCodeConfig, err, "reading %s", ConfigFile)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeConfig, err, "parsing %s", ConfigFile)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Color {
	case "", "auto", "always", "never":
	default:
		return errors.New(errors.ErrCodeConfig, "invalid color mode %q (want auto, always, or never)", c.Color)
	}
	if c.Jobs < 0 {
		return errors.New(errors.ErrCodeConfig, "jobs must not be negative")
	}
	return nil
}

// Excluded reports whether the named package is configured out of the check.
func (c Config) Excluded(name string) bool {
	for _, e := range c.Exclude {
		if e == name {
			return true
		}
	}
	return false
}
