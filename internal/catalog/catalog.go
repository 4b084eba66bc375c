// Package catalog holds the application templates and dataset fixtures the
// advisor serves. It is loaded once at start-up and never mutated, so a
// *Catalog is safe for concurrent use.
package catalog

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"atlas-advisor-backend/internal/types"
)

// TemplateCount is the size of the application template catalog.
const TemplateCount = 12

//go:embed data/*.yaml
var files embed.FS

type Catalog struct {
	templates []types.AppTemplate
	datasets  []types.Dataset
	byID      map[string]int
}

type templateFile struct {
	Templates []types.AppTemplate `yaml:"templates"`
}

type datasetFile struct {
	Datasets []types.Dataset `yaml:"datasets"`
}

// Load reads the embedded catalog.
func Load() (*Catalog, error) {
	tb, err := files.ReadFile("data/templates.yaml")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	db, err := files.ReadFile("data/datasets.yaml")
	if err != nil {
		return nil, fmt.Errorf("read datasets: %w", err)
	}
	return Parse(tb, db)
}

// MustLoad is Load for process start-up and tests.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML documents.
func Parse(templatesYAML, datasetsYAML []byte) (*Catalog, error) {
	var tf templateFile
	if err := yaml.Unmarshal(templatesYAML, &tf); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	var df datasetFile
	if err := yaml.Unmarshal(datasetsYAML, &df); err != nil {
		return nil, fmt.Errorf("parse datasets: %w", err)
	}
	if len(tf.Templates) != TemplateCount {
		return nil, fmt.Errorf("catalog must define %d templates, found %d", TemplateCount, len(tf.Templates))
	}
	c := &Catalog{
		templates: tf.Templates,
		datasets:  df.Datasets,
		byID:      make(map[string]int, len(tf.Templates)),
	}
	for i, t := range tf.Templates {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("template %d is missing an id or name", i)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		c.byID[t.ID] = i
	}
	seen := make(map[string]struct{}, len(df.Datasets))
	for i, d := range df.Datasets {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Title) == "" {
			return nil, fmt.Errorf("dataset %d is missing an id or title", i)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("duplicate dataset id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return c, nil
}

// Templates returns the templates in catalog order.
func (c *Catalog) Templates() []types.AppTemplate {
	out := make([]types.AppTemplate, len(c.templates))
	for i, t := range c.templates {
		out[i] = cloneTemplate(t)
	}
	return out
}

// Template looks up a template by id.
func (c *Catalog) Template(id string) (types.AppTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return types.AppTemplate{}, false
	}
	return cloneTemplate(c.templates[i]), true
}

// Datasets returns the dataset fixtures in catalog order.
func (c *Catalog) Datasets() []types.Dataset {
	out := make([]types.Dataset, len(c.datasets))
	for i, d := range c.datasets {
		out[i] = d
		out[i].Tags = append([]string(nil), d.Tags...)
	}
	return out
}

func cloneTemplate(t types.AppTemplate) types.AppTemplate {
	t.Keywords = append([]string(nil), t.Keywords...)
	t.Features = append([]string(nil), t.Features...)
	t.UseCases = append([]string(nil), t.UseCases...)
	return t
}
