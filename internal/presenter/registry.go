package presenter

import (
	"embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemasFS embed.FS

// registry is the singleton schema registry.
var registry = &Registry{}

// Registry holds loaded entity schemas indexed by name.
type Registry struct {
	once    sync.Once
	byName  map[string]*EntitySchema
	loadErr error
}

// load parses all embedded YAML schemas.
func (r *Registry) load() {
	r.once.Do(func() {
		r.byName = make(map[string]*EntitySchema)

		entries, err := schemasFS.ReadDir("schemas")
		if err != nil {
			r.loadErr = fmt.Errorf("reading schemas dir: %w", err)
			return
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := schemasFS.ReadFile("schemas/" + entry.Name())
			if err != nil {
				r.loadErr = fmt.Errorf("reading %s: %w", entry.Name(), err)
				continue
			}
			schema := new(EntitySchema)
			if err := yaml.Unmarshal(data, schema); err != nil {
				r.loadErr = fmt.Errorf("parsing %s: %w", entry.Name(), err)
				continue
			}
			r.byName[schema.Entity] = schema
		}
	})
}

// LookupByName returns a schema by entity name (e.g. "location").
func LookupByName(name string) *EntitySchema {
	registry.load()
	return registry.byName[name]
}

// Names lists the registered entities.
func Names() []string {
	registry.load()
	names := make([]string, 0, len(registry.byName))
	for name := range registry.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadError reports the first problem hit while loading schemas.
func LoadError() error {
	registry.load()
	return registry.loadErr
}
