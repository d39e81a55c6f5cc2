package portal

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/portal/pkg/identity"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Tool is a link to an operational dashboard
type Tool struct {
	Name          string   `yaml:"name"`
	Title         string   `yaml:"title"`
	URL           string   `yaml:"url"`
	Description   string   `yaml:"description"`
	RequiredRoles []string `yaml:"required_roles"`
}

// Catalog lists the tools offered on the dashboards
type Catalog struct {
	Tools []Tool `yaml:"tools"`
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Tools))
	for i, tool := range c.Tools {
		if tool.Name == "" || tool.URL == "" {
			return Catalog{}, fmt.Errorf("catalog tool %d: name and url are required", i)
		}
		if seen[tool.Name] {
			return Catalog{}, fmt.Errorf("catalog tool %q: duplicate name", tool.Name)
		}
		seen[tool.Name] = true
		if c.Tools[i].Title == "" {
			c.Tools[i].Title = tool.Name
		}
	}
	return c, nil
}

// For returns the tools ident may see, in catalog order
func (c Catalog) For(ident *identity.Identity) []Tool {
	var out []Tool
	for _, tool := range c.Tools {
		if ident.HasAnyRole(tool.RequiredRoles) {
			out = append(out, tool)
		}
	}
	return out
}
