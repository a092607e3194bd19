// Package makerconfig implements the file-backed ConfigPersister (spec
// §6): MakerConfig round-tripped as YAML via the teacher's goccy/go-yaml
// idiom (pkg/parser reads/writes frontmatter the same way), at
// .maker/config.yaml under the project root.
package makerconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("makerconfig:persister")

const configRelPath = ".maker/config.yaml"

// FilePersister implements ports.ConfigPersister against a YAML file
// under the project root.
type FilePersister struct {
	Root string
}

// New returns a FilePersister rooted at root.
func New(root string) *FilePersister {
	return &FilePersister{Root: root}
}

func (p *FilePersister) path() string {
	return filepath.Join(p.Root, configRelPath)
}

// Load reads the persisted config, falling back to config.Default() when
// no file exists yet.
func (p *FilePersister) Load(ctx context.Context) (config.MakerConfig, error) {
	data, err := os.ReadFile(p.path())
	if os.IsNotExist(err) {
		log.Print("no config file found, using defaults")
		return config.Default(), nil
	}
	if err != nil {
		return config.MakerConfig{}, fmt.Errorf("makerconfig: reading %s: %w", p.path(), err)
	}

	cfg := config.Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return config.MakerConfig{}, fmt.Errorf("makerconfig: parsing %s: %w", p.path(), err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating .maker/ if needed.
func (p *FilePersister) Save(ctx context.Context, cfg config.MakerConfig) error {
	if err := os.MkdirAll(filepath.Dir(p.path()), 0o755); err != nil {
		return fmt.Errorf("makerconfig: creating .maker directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("makerconfig: marshaling config: %w", err)
	}
	if err := os.WriteFile(p.path(), data, 0o600); err != nil {
		return fmt.Errorf("makerconfig: writing %s: %w", p.path(), err)
	}
	log.Print("persisted config")
	return nil
}
