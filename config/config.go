package config

import (
	"fmt"
	"os"

	"github.com/opsfab/opsfab/layout"
	"github.com/opsfab/opsfab/types"
	"gopkg.in/yaml.v3"
)

// EnvVar overrides the default config path when set
const EnvVar = "OPSFAB_CONFIG"

// Config represents the main deployment configuration
type Config struct {
	Version      string                 `yaml:"version"`
	Project      string                 `yaml:"project"`
	Region       string                 `yaml:"region"`
	DefaultEnv   string                 `yaml:"default_env,omitempty"`
	Instance     types.InstanceSpec     `yaml:"instance,omitempty"`
	Environments map[string]Environment `yaml:"environments"`
}

// Environment holds per-role deployment settings. Keeping deployment
// configuration out of connection state avoids the classic trap of
// overloading transport settings with application ones.
type Environment struct {
	Hosts        []string          `yaml:"hosts,omitempty"`
	User         string            `yaml:"user"`
	Keyfile      string            `yaml:"keyfile,omitempty"`
	DeployRoot   string            `yaml:"deploy_root"`
	Python       string            `yaml:"python,omitempty"`
	Requirements string            `yaml:"requirements,omitempty"`
	AppEntry     string            `yaml:"app_entry,omitempty"`
	Program      string            `yaml:"program,omitempty"`
	Domain       string            `yaml:"domain,omitempty"`
	ZoneID       string            `yaml:"zone_id,omitempty"`
	Tags         map[string]string `yaml:"tags,omitempty"`
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Path resolves the config path: explicit flag, then $OPSFAB_CONFIG,
// then ./opsfab.yaml.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	return "opsfab.yaml"
}

// Validate ensures config has required fields
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Project == "" {
		return fmt.Errorf("project is required")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	for name, env := range c.Environments {
		if env.User == "" {
			return fmt.Errorf("environment %q: user is required", name)
		}
		if env.DeployRoot == "" {
			return fmt.Errorf("environment %q: deploy_root is required", name)
		}
	}
	return nil
}

// Env selects the configuration for the named environment, falling back
// to the default environment when name is empty.
func (c *Config) Env(name string) (*Environment, error) {
	if name == "" {
		name = c.DefaultEnv
	}
	if name == "" {
		return nil, fmt.Errorf("no environment named and no default_env configured")
	}
	env, ok := c.Environments[name]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q", name)
	}
	return &env, nil
}

// Layout returns the directory layout under the environment's deploy root
func (e *Environment) Layout() layout.Layout {
	return layout.New(e.DeployRoot)
}

// HostList parses the environment's host strings, applying the
// environment user to hosts that don't name one.
func (e *Environment) HostList() ([]types.Host, error) {
	hosts := make([]types.Host, 0, len(e.Hosts))
	for _, s := range e.Hosts {
		h, err := types.ParseHost(s)
		if err != nil {
			return nil, fmt.Errorf("environment host %q: %w", s, err)
		}
		if h.User == "" {
			h.User = e.User
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// Interpreter returns the python executable used to create virtualenvs
func (e *Environment) Interpreter() string {
	if e.Python != "" {
		return e.Python
	}
	return "python3"
}
