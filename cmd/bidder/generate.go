package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/poolbid/config"
	"github.com/alejandrodnm/poolbid/internal/domain"
)

// writeCollectionConfigs writes one fully populated override per collection,
// seeded from the current defaults. Existing overrides are kept as they are.
func writeCollectionConfigs(path string, cfg *config.Config, collections []*domain.Collection) error {
	overrides := make(map[string]config.CollectionOverride, len(collections))
	for _, c := range collections {
		if o, ok := cfg.Overrides[c.ContractAddress]; ok {
			if o.Slug == "" {
				o.Slug = c.Slug
			}
			overrides[c.ContractAddress] = o
			continue
		}
		overrides[c.ContractAddress] = config.OverrideFrom(c.Slug, cfg.Defaults)
	}

	out, err := yaml.Marshal(struct {
		Overrides map[string]config.CollectionOverride `yaml:"overrides"`
	}{overrides})
	if err != nil {
		return fmt.Errorf("main.writeCollectionConfigs: marshal: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("main.writeCollectionConfigs: write %q: %w", path, err)
	}
	return nil
}
