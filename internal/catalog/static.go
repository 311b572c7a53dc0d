package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/semgate-labs/semgate/internal/errors"
)

// StaticCatalog is an in-memory Catalog and SourceProvider, loadable from
// YAML documents. It backs development deployments and tests; production
// deployments plug in their own catalog store.
type StaticCatalog struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	erds     map[string]*ERDModel
	models   map[string]*SemanticModel
	sources  map[string]*Source
}

// NewStaticCatalog creates an empty static catalog.
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		datasets: make(map[string]*Dataset),
		erds:     make(map[string]*ERDModel),
		models:   make(map[string]*SemanticModel),
		sources:  make(map[string]*Source),
	}
}

// AddDataset registers a dataset after validating it.
func (c *StaticCatalog) AddDataset(d *Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datasets[d.ID] = d
	return nil
}

// AddERD registers the join graph for a source.
func (c *StaticCatalog) AddERD(sourceID string, m *ERDModel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.erds[sourceID] = m
}

// AddSemanticModel registers the semantic model for a dataset.
func (c *StaticCatalog) AddSemanticModel(m *SemanticModel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.DatasetID] = m
}

// AddSource registers a source configuration.
func (c *StaticCatalog) AddSource(s *Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[s.ID] = s
}

// GetDataset implements Catalog.
func (c *StaticCatalog) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.datasets[id]
	if !ok {
		return nil, errors.NewDatasetNotFound(id)
	}
	return d, nil
}

// GetERD implements Catalog.
func (c *StaticCatalog) GetERD(ctx context.Context, sourceID string) (*ERDModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.erds[sourceID], nil
}

// GetSemanticModel implements Catalog.
func (c *StaticCatalog) GetSemanticModel(ctx context.Context, datasetID string) (*SemanticModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models[datasetID], nil
}

// GetSource implements SourceProvider.
func (c *StaticCatalog) GetSource(ctx context.Context, sourceID string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sources[sourceID]
	if !ok {
		return nil, errors.NewConfig("unknown source: %s", sourceID)
	}
	return s, nil
}

// catalogFile is the YAML document shape for LoadFile.
type catalogFile struct {
	Datasets []Dataset `yaml:"datasets"`
	Sources  []Source  `yaml:"sources"`
	ERDs     []struct {
		SourceID string   `yaml:"source_id"`
		Model    ERDModel `yaml:"model"`
	} `yaml:"erds"`
	SemanticModels []SemanticModel `yaml:"semantic_models"`
}

// LoadFile merges a YAML catalog document into the static catalog.
func (c *StaticCatalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: reading %s: %w", path, err)
	}
	return c.LoadYAML(data)
}

// LoadYAML merges a YAML catalog document into the static catalog.
func (c *StaticCatalog) LoadYAML(data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("catalog: parsing yaml: %w", err)
	}

	for i := range file.Datasets {
		d := file.Datasets[i]
		if err := c.AddDataset(&d); err != nil {
			return err
		}
	}
	for i := range file.Sources {
		s := file.Sources[i]
		c.AddSource(&s)
	}
	for _, e := range file.ERDs {
		m := e.Model
		c.AddERD(e.SourceID, &m)
	}
	for i := range file.SemanticModels {
		m := file.SemanticModels[i]
		c.AddSemanticModel(&m)
	}
	return nil
}
