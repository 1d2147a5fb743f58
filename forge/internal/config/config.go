// Package config loads forge.yml from the project root.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/simonhull/firebird-suite/fledge/project"
	"github.com/simonhull/firebird-suite/forge/internal/patch"
	"github.com/simonhull/firebird-suite/forge/internal/render"
)

// FileNames are the config files looked up in the project root, in order.
var FileNames = []string{"forge.yml", "forge.yaml"}

// EnvPrefix prefixes environment overrides, e.g. FORGE_REGISTRY_PATH.
const EnvPrefix = "FORGE"

// Config is the resolved forge configuration.
type Config struct {
	BasePath string         `mapstructure:"base_path"`
	Module   string         `mapstructure:"module"`
	Router   string         `mapstructure:"router"`
	Stubs    StubsConfig    `mapstructure:"stubs"`
	Registry RegistryConfig `mapstructure:"registry"`
	Rules    RulesConfig    `mapstructure:"rules"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, empty when only defaults apply.
	File string `mapstructure:"-"`
}

type StubsConfig struct {
	Dir       string `mapstructure:"dir"`
	SharedDir string `mapstructure:"shared_dir"`
}

type RegistryConfig struct {
	Path     string `mapstructure:"path"`
	Mode     string `mapstructure:"mode"`
	Function string `mapstructure:"function"`
	List     string `mapstructure:"list"`
}

type RulesConfig struct {
	NameHeuristics bool `mapstructure:"name_heuristics"`
}

// StorageConfig configures the model collaborator. An empty Command selects
// the built-in model stub.
type StorageConfig struct {
	Command    string `mapstructure:"command"`
	ModelsPath string `mapstructure:"models_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_path", "internal/contexts")
	v.SetDefault("module", "")
	v.SetDefault("router", render.RouterStdlib)
	v.SetDefault("stubs.dir", "stubs/forge")
	v.SetDefault("stubs.shared_dir", "")
	v.SetDefault("registry.path", "internal/app/providers.go")
	v.SetDefault("registry.mode", string(patch.ModeAuto))
	v.SetDefault("registry.function", "RegisterProviders")
	v.SetDefault("registry.list", "Providers")
	v.SetDefault("rules.name_heuristics", true)
	v.SetDefault("storage.command", "")
	v.SetDefault("storage.models_path", "internal/models")
	v.SetDefault("log.level", "warn")
}

// Default returns the configuration used when no file or environment
// override exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Decoding plain defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the config file from root on fsys, applies FORGE_* environment
// overrides and fills Module from go.mod when it is not configured. A missing
// config file is not an error.
func Load(fsys afero.Fs, root string) (*Config, error) {
	v := viper.New()
	v.SetFs(fsys)
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file, err := findFile(fsys, root)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = file

	if cfg.Module == "" {
		info, err := project.DetectModule(fsys, root)
		switch {
		case errors.Is(err, project.ErrNoModule):
		case err != nil:
			return nil, err
		default:
			cfg.Module = info.Path
		}
	}

	cfg.Stubs.SharedDir = expandHome(cfg.Stubs.SharedDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findFile(fsys afero.Fs, root string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(root, name)
		_, err := fsys.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
	}
	return "", nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Router {
	case render.RouterStdlib, render.RouterChi:
	default:
		return fmt.Errorf("invalid router %q (want %s or %s)", c.Router, render.RouterStdlib, render.RouterChi)
	}
	if _, err := patch.ParseMode(c.Registry.Mode); err != nil {
		return err
	}
	if strings.TrimSpace(c.BasePath) == "" {
		return errors.New("base_path must not be empty")
	}
	return nil
}

// RegistryMode returns the validated registry mode.
func (c *Config) RegistryMode() patch.Mode {
	mode, err := patch.ParseMode(c.Registry.Mode)
	if err != nil {
		return patch.ModeAuto
	}
	return mode
}
