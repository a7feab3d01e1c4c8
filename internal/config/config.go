// Package config loads the YAML application config and the
// table-list CSV that together describe one sync_data invocation
// (spec.md §6).
package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// Config is the top-level shape of config/config.yaml.
type Config struct {
	Source       BackendConfig      `yaml:"source"`
	Target       BackendConfig      `yaml:"target"`
	TablesConfig TablesConfigConfig `yaml:"tables_config"`
}

// BackendConfig is one side's (source or target) raw config block.
// Type names a registered warehouse.WarehouseKind; the other named
// fields map onto the ConnectionConfig fields of the same name, and any
// key not named here is backend-specific and decoded into Options
// (carried through as ConnectionConfig.Options).
type BackendConfig struct {
	Type      string                 `yaml:"type"`
	Host      string                 `yaml:"host"`
	Port      int                    `yaml:"port"`
	Account   string                 `yaml:"account"`
	Database  string                 `yaml:"database"`
	Warehouse string                 `yaml:"warehouse"`
	Role      string                 `yaml:"role"`
	Username  string                 `yaml:"username"`
	Password  string                 `yaml:"password"`
	Path      string                 `yaml:"path"`
	Options   map[string]interface{} `yaml:",inline"`
}

// TablesConfigConfig points at the table-list CSV.
type TablesConfigConfig struct {
	Path string `yaml:"path"`
}

// ConnectionConfig converts a BackendConfig into the warehouse package's
// connection struct, optionally stamping ReplaceExisting through
// Options (the --replace-existing CLI flag, spec.md §6).
func (b BackendConfig) ConnectionConfig(replaceExisting bool) warehouse.ConnectionConfig {
	options := make(map[string]interface{}, len(b.Options)+1)
	for k, v := range b.Options {
		options[k] = v
	}
	options["replace_existing"] = replaceExisting

	return warehouse.ConnectionConfig{
		Kind:      warehouse.WarehouseKind(b.Type),
		Host:      b.Host,
		Port:      b.Port,
		Account:   b.Account,
		Database:  b.Database,
		Warehouse: b.Warehouse,
		Role:      b.Role,
		Username:  b.Username,
		Password:  b.Password,
		Path:      b.Path,
		Options:   options,
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses the config file at path, interpolating
// ${NAME} environment references before unmarshalling.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, warehouse.NewConfigError("config", "reading %s: %v", path, err)
	}

	interpolated, err := interpolateEnv(raw)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(interpolated, &cfg); err != nil {
		return nil, warehouse.NewConfigError("config", "parsing %s: %v", path, err)
	}
	return &cfg, nil
}

// interpolateEnv replaces every ${NAME} occurrence in raw with the
// environment value of NAME. A reference to an unset variable is an
// InvalidConfig error (spec.md §6 "a missing variable is a
// configuration error").
func interpolateEnv(raw []byte) ([]byte, error) {
	var missing string
	out := envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		value, ok := os.LookupEnv(string(name))
		if !ok {
			missing = string(name)
			return match
		}
		return []byte(value)
	})
	if missing != "" {
		return nil, warehouse.NewConfigError("config", "environment variable %s is not set", missing)
	}
	return out, nil
}
