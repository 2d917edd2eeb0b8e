// Package config holds the declared target state: which packages, which
// Ruby, which gpxlib, which repositories. Defaults are embedded; a user
// override file under the XDG config dir is merged on top when present.
package config

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/trailstrap/trailstrap/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// Config is the full declared target state for one machine.
type Config struct {
	Tree     TreeConfig     `toml:"tree"`
	Ruby     RubyConfig     `toml:"ruby"`
	GPXLib   GPXLibConfig   `toml:"gpxlib"`
	Tools    ToolsConfig    `toml:"tools"`
	Packages PackagesConfig `toml:"packages"`
	Gems     GemsConfig     `toml:"gems"`
}

// TreeConfig locates the managed directory tree.
type TreeConfig struct {
	// Base may start with ~; it is expanded by pkg/workspace.
	Base string `toml:"base"`
	Lib  string `toml:"lib"`
	Bin  string `toml:"bin"`
}

// RubyConfig declares the interpreter and version-manager target state.
type RubyConfig struct {
	Version         string `toml:"version"`
	RbenvRemote     string `toml:"rbenv_remote"`
	RubyBuildRemote string `toml:"ruby_build_remote"`
}

// GPXLibConfig declares the native library build target.
type GPXLibConfig struct {
	Version    string `toml:"version"`
	TarballURL string `toml:"tarball_url"`
	SHA256     string `toml:"sha256"`
	PingHost   string `toml:"ping_host"`
}

// ToolsConfig declares the companion tool repository.
type ToolsConfig struct {
	Remote   string `toml:"remote"`
	Manifest string `toml:"manifest"`
}

// PackagesConfig lists the required native packages per family, in
// install order.
type PackagesConfig struct {
	Debian   []string `toml:"debian"`
	RedHat   []string `toml:"redhat"`
	OpenSUSE []string `toml:"opensuse"`
}

// GemsConfig names the runtime libraries installed on top of Ruby.
type GemsConfig struct {
	XML string `toml:"xml"`
	TUI string `toml:"tui"`
}

// UserConfigPath returns the location of the optional override file.
func UserConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "trailstrap", "config.toml")
}

// Load returns the embedded defaults with the user override file (if any)
// unmarshalled on top.
func Load() (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "embedded defaults are invalid")
	}

	userPath := UserConfigPath()
	data, err := os.ReadFile(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", userPath)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "cannot parse %s", userPath)
	}
	return &cfg, nil
}
