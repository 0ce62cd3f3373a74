package roles

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoleConfig is one catalog entry in the YAML config.
type RoleConfig struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
	Label string `yaml:"label"`
}

// ChainConfig maps an operation type to its full ordered approver chain.
type ChainConfig struct {
	Operation string   `yaml:"operation"`
	Approvers []string `yaml:"approvers"`
}

// Config is the engine's role and chain configuration. It is the single
// source of truth for privilege levels.
type Config struct {
	Roles  []RoleConfig  `yaml:"roles"`
	Chains []ChainConfig `yaml:"chains"`
}

// LoadConfig reads the YAML configuration from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("roles: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration document.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("roles: parse config: %w", err)
	}
	if len(cfg.Roles) == 0 {
		return Config{}, fmt.Errorf("roles: config declares no roles")
	}
	return cfg, nil
}

// CatalogFromConfig builds the catalog from configuration.
func CatalogFromConfig(cfg Config) (*Catalog, error) {
	list := make([]Role, 0, len(cfg.Roles))
	for _, rc := range cfg.Roles {
		list = append(list, Role{Name: rc.Name, Level: rc.Level, Label: rc.Label})
	}
	return NewCatalog(list)
}
