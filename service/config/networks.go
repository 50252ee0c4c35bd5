package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/brojonat/txfeed/service/activity"
	"gopkg.in/yaml.v3"
)

// NetworkProfile describes how activities on one Solana cluster are labelled.
type NetworkProfile struct {
	Name                string `yaml:"name"`
	ChainID             string `yaml:"chain_id"`
	ExplorerURLTemplate string `yaml:"explorer_url_template"` // {signature}, {cluster}, {chain}
	NativeSymbol        string `yaml:"native_symbol"`
}

// Validate reports missing profile fields.
func (p NetworkProfile) Validate() error {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.ChainID == "" {
		missing = append(missing, "chain_id")
	}
	if !strings.Contains(p.ExplorerURLTemplate, "{signature}") {
		missing = append(missing, "explorer_url_template with {signature}")
	}
	if p.NativeSymbol == "" {
		missing = append(missing, "native_symbol")
	}
	if len(missing) > 0 {
		return fmt.Errorf("network profile %q is missing %s", p.Name, strings.Join(missing, ", "))
	}
	return nil
}

// ClassifyContext binds the profile to the address a pass runs for.
func (p NetworkProfile) ClassifyContext(address string) activity.ClassifyContext {
	return activity.ClassifyContext{
		ChainID:             p.ChainID,
		Network:             p.Name,
		ExplorerURLTemplate: p.ExplorerURLTemplate,
		SelectedAddress:     address,
		NativeSymbol:        p.NativeSymbol,
	}
}

// BuiltinNetworks returns the profiles available without a networks file.
func BuiltinNetworks() map[string]NetworkProfile {
	return map[string]NetworkProfile{
		"mainnet": {
			Name:                "mainnet",
			ChainID:             "101",
			ExplorerURLTemplate: "https://explorer.solana.com/tx/{signature}",
			NativeSymbol:        "SOL",
		},
		"devnet": {
			Name:                "devnet",
			ChainID:             "103",
			ExplorerURLTemplate: "https://explorer.solana.com/tx/{signature}?cluster={cluster}",
			NativeSymbol:        "SOL",
		},
	}
}

type networksFile struct {
	Networks []NetworkProfile `yaml:"networks"`
}

// LoadNetworks returns the built-in profiles overlaid with the profiles in path.
// An empty path returns the built-ins unchanged.
func LoadNetworks(path string) (map[string]NetworkProfile, error) {
	networks := BuiltinNetworks()
	if path == "" {
		return networks, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("NETWORKS_FILE: %w", err)
	}
	return parseNetworks(raw, networks)
}

func parseNetworks(raw []byte, networks map[string]NetworkProfile) (map[string]NetworkProfile, error) {
	var f networksFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("NETWORKS_FILE: invalid yaml: %w", err)
	}

	var errs []error
	for _, p := range f.Networks {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		networks[p.Name] = p
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("NETWORKS_FILE: %w", errors.Join(errs...))
	}
	return networks, nil
}
