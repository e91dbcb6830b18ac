// Package entity maps knowledge-base entities to their retrieval
// configuration.
//
// The registry is a deployment-time constant: it is populated once at
// startup and exposes no mutation operations. Every query is scoped to one
// entity, which decides the grounding prompt and the vector container the
// retrieval runs against.
package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Config describes one entity knowledge base.
type Config struct {
	// GroundedPrompt is prepended to queries for this entity. Optional.
	GroundedPrompt string

	// DatabaseName is the vector database the entity's container lives in.
	DatabaseName string

	// ContainerName is the container within the database.
	ContainerName string

	// Description is shown to users when listing entities.
	Description string
}

// UnknownEntityError reports a lookup for an entity that is not registered.
// Available carries the sorted registered names for user-facing messages.
type UnknownEntityError struct {
	Name      string
	Available []string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity %q: available entities: %s",
		e.Name, strings.Join(e.Available, ", "))
}

// Registry is an immutable entity name → Config lookup table.
type Registry struct {
	configs map[string]Config
}

// NewRegistry builds a registry from the given mapping. The map is copied;
// later mutation of the argument does not affect the registry.
func NewRegistry(configs map[string]Config) *Registry {
	m := make(map[string]Config, len(configs))
	for name, cfg := range configs {
		m[name] = cfg
	}
	return &Registry{configs: m}
}

// Default returns the registry with the built-in entity knowledge bases.
func Default() *Registry {
	return NewRegistry(map[string]Config{
		"seal": {
			GroundedPrompt: "Pretend that you are a seal in the wadden sea and give truthful answers based on the report data. Do not hallucinate if no information is available.",
			DatabaseName:   "vectorSearchDB",
			ContainerName:  "seal_vectorSearchContainer",
			Description:    "Seal knowledge base",
		},
		"seagrass": {
			GroundedPrompt: "Pretend that you are seagrass in the wadden sea and give truthful answers based on the report data. Do not hallucinate if no information is available.",
			DatabaseName:   "vectorSearchDB",
			ContainerName:  "seagrassContainer",
			Description:    "Seagrass knowledge base",
		},
	})
}

// Get returns the configuration for name.
// It returns *UnknownEntityError if name is not registered.
func (r *Registry) Get(name string) (Config, error) {
	cfg, ok := r.configs[name]
	if !ok {
		return Config{}, &UnknownEntityError{Name: name, Available: r.Names()}
	}
	return cfg, nil
}

// Names returns all registered entity names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
