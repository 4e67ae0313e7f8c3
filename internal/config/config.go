// Package config loads the optional YAML rules file that tunes the
// conversion and reconciliation flows. All values have working defaults;
// running without a rules file is the common case.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jhaugan/catsync/internal/filter"
	"gopkg.in/yaml.v3"
)

// ConvertConfig tunes the conversion flows.
type ConvertConfig struct {
	// The alias prefix for services created from systems. If empty, the
	// converter default applies.
	ServicePrefix string `yaml:"servicePrefix"`
}

// ReconcileConfig tunes the reconciliation flow.
type ReconcileConfig struct {
	// The alias prefix under which former children were recreated as
	// services. If empty, the service prefix applies.
	ChildPrefix string `yaml:"childPrefix"`
}

// FilterConfig holds per-kind default record filters. An empty filter
// selects every record.
type FilterConfig struct {
	Systems string `yaml:"systems"` // Default filter for system flows.
	Domains string `yaml:"domains"` // Default filter for domain flows.
	// Cached compiled filters, nil when the source string is empty.
	systemsFilter *filter.Evaluator
	domainsFilter *filter.Evaluator
}

func (c *FilterConfig) SystemsFilter() *filter.Evaluator {
	return c.systemsFilter
}

func (c *FilterConfig) DomainsFilter() *filter.Evaluator {
	return c.domainsFilter
}

// Bundle is the umbrella struct for the serialized rules YAML.
// It bundles the flow-specific configurations.
type Bundle struct {
	Convert   ConvertConfig   `yaml:"convert"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Filters   FilterConfig    `yaml:"filters"`
}

// Default returns the rules used when no rules file is given.
func Default() *Bundle {
	return &Bundle{}
}

// Load reads and validates a rules file. Filters are compiled here so
// that a bad filter fails the program start, not the first record.
func Load(path string) (*Bundle, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read rules %q: %v", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(bs))
	dec.KnownFields(true)
	var bundle Bundle
	if err := dec.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("invalid rules YAML in %q: %v", path, err)
	}

	// Populate and validate computed fields
	if f := bundle.Filters.Systems; f != "" {
		ev, err := filter.Compile(f)
		if err != nil {
			return nil, fmt.Errorf("invalid filters.systems in %q: %v", path, err)
		}
		bundle.Filters.systemsFilter = ev
	}
	if f := bundle.Filters.Domains; f != "" {
		ev, err := filter.Compile(f)
		if err != nil {
			return nil, fmt.Errorf("invalid filters.domains in %q: %v", path, err)
		}
		bundle.Filters.domainsFilter = ev
	}

	return &bundle, nil
}
