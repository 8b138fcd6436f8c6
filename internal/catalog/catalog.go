// Package catalog holds the static requirement catalog: which documents a
// jurisdiction requires for a service, and which ticket type and category a
// service belongs to. A Catalog is built once and never mutated afterwards.
package catalog

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type TicketType struct {
	Key      string
	Category string
	Services []string
}

type Catalog struct {
	required    map[string]map[string][]string
	ticketTypes []TicketType
	services    []string
	owner       map[string]int
	duplicates  []string
}

type fileFormat struct {
	RequiredDocuments map[string]map[string][]string `yaml:"required_documents"`
	TicketTypes       yaml.Node                      `yaml:"ticket_types"`
}

type ticketTypeSpec struct {
	Category string   `yaml:"category"`
	Services []string `yaml:"services"`
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
})

// Default returns the embedded catalog. It is parsed on first use only.
func Default() (*Catalog, error) {
	return loadDefault()
}

// Load reads a catalog file. JSON files are accepted as well since YAML is a
// superset of JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var raw fileFormat
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	c := &Catalog{
		required: make(map[string]map[string][]string, len(raw.RequiredDocuments)),
		owner:    make(map[string]int),
	}
	for jurisdiction, services := range raw.RequiredDocuments {
		byService := make(map[string][]string, len(services))
		for service, docs := range services {
			byService[service] = dedupe(docs)
		}
		c.required[jurisdiction] = byService
	}

	// Decoded through yaml.Node: a Go map would lose the file order, and the
	// file order decides which ticket type owns a shared service.
	if raw.TicketTypes.Kind != 0 {
		if raw.TicketTypes.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse catalog yaml: ticket_types must be a mapping")
		}
		content := raw.TicketTypes.Content
		for i := 0; i+1 < len(content); i += 2 {
			key := strings.TrimSpace(content[i].Value)
			var spec ticketTypeSpec
			if err := content[i+1].Decode(&spec); err != nil {
				return nil, fmt.Errorf("parse ticket type %q: %w", key, err)
			}
			c.ticketTypes = append(c.ticketTypes, TicketType{
				Key:      key,
				Category: spec.Category,
				Services: dedupe(spec.Services),
			})
		}
	}

	for idx, tt := range c.ticketTypes {
		for _, service := range tt.Services {
			if first, ok := c.owner[service]; ok {
				c.duplicates = append(c.duplicates, service)
				log.Printf("catalog duplicate service=%q ticket_type=%s kept=%s", service, tt.Key, c.ticketTypes[first].Key)
				continue
			}
			c.owner[service] = idx
			c.services = append(c.services, service)
		}
	}
	return c, nil
}

// RequiredDocuments returns the required document labels for a service in a
// jurisdiction, in catalog order. Unknown pairs yield an empty result.
func (c *Catalog) RequiredDocuments(jurisdiction, service string) []string {
	docs := c.required[jurisdiction][service]
	return append([]string{}, docs...)
}

// ResolveTicketType returns the first ticket type, in enumeration order, whose
// service list contains service. Both values are empty when nothing matches.
func (c *Catalog) ResolveTicketType(service string) (ticketType, category string) {
	idx, ok := c.owner[service]
	if !ok {
		return "", ""
	}
	tt := c.ticketTypes[idx]
	return tt.Key, tt.Category
}

// AllKnownServices lists every service of every ticket type once, in
// enumeration order.
func (c *Catalog) AllKnownServices() []string {
	return append([]string{}, c.services...)
}

// MatchService returns the first known service contained in text, compared
// case-insensitively.
func (c *Catalog) MatchService(text string) (string, bool) {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return "", false
	}
	for _, service := range c.services {
		if service == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(service)) {
			return service, true
		}
	}
	return "", false
}

// Jurisdictions returns the jurisdiction codes present in the catalog, sorted.
func (c *Catalog) Jurisdictions() []string {
	out := make([]string, 0, len(c.required))
	for j := range c.required {
		out = append(out, j)
	}
	sort.Strings(out)
	return out
}

// Duplicates lists services that appear under more than one ticket type.
func (c *Catalog) Duplicates() []string {
	return append([]string{}, c.duplicates...)
}

func (c *Catalog) TicketTypes() []TicketType {
	out := make([]TicketType, len(c.ticketTypes))
	for i, tt := range c.ticketTypes {
		tt.Services = append([]string{}, tt.Services...)
		out[i] = tt
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
