// Package catalog holds the static mapping from delegate-side modules
// to the capability tags they provide. Read-only after initialization.
package catalog

import "strings"

// Module describes one capability module available in the delegate
// environment.
type Module struct {
	ID          string
	Description string
	Tags        []string
}

// Catalog is the immutable set of known delegate modules.
type Catalog struct {
	modules []Module
	byID    map[string]Module
}

// Default returns the catalog of modules the delegate environment ships.
func Default() *Catalog {
	return New([]Module{
		{
			ID:          "statistics",
			Description: "Statistical analysis and aggregation over tabular data",
			Tags:        []string{"data analysis", "statistics", "aggregation"},
		},
		{
			ID:          "dataframe",
			Description: "Large-scale tabular data manipulation and transformation",
			Tags:        []string{"data analysis", "data manipulation", "etl"},
		},
		{
			ID:          "ml_runtime",
			Description: "Model training and inference runtime",
			Tags:        []string{"machine learning", "training", "inference"},
		},
		{
			ID:          "browser",
			Description: "Headless browser navigation and page interaction",
			Tags:        []string{"browser automation", "web scraping", "navigation"},
		},
		{
			ID:          "scraper",
			Description: "Structured extraction from fetched web content",
			Tags:        []string{"web scraping", "extraction", "crawling"},
		},
		{
			ID:          "imaging",
			Description: "Image decoding, transformation and OCR",
			Tags:        []string{"image processing", "ocr", "vision"},
		},
		{
			ID:          "crypto",
			Description: "Cryptographic hashing, signing and verification",
			Tags:        []string{"cryptography", "hashing", "signing"},
		},
		{
			ID:          "report",
			Description: "Report and PDF document generation",
			Tags:        []string{"report generation", "pdf", "documents"},
		},
		{
			ID:          "file_analyzer",
			Description: "Deep file and repository content analysis",
			Tags:        []string{"file analysis", "code analysis", "security audit"},
		},
		{
			ID:          "compute",
			Description: "General-purpose heavy numerical computation",
			Tags:        []string{"computation", "numerical", "simulation"},
		},
	})
}

// New builds a catalog from the given modules.
func New(modules []Module) *Catalog {
	byID := make(map[string]Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}
	return &Catalog{modules: modules, byID: byID}
}

// Modules returns all modules in declaration order.
func (c *Catalog) Modules() []Module {
	out := make([]Module, len(c.modules))
	copy(out, c.modules)
	return out
}

// Get returns the module with the given ID.
func (c *Catalog) Get(id string) (Module, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Lookup returns all modules whose tags match the given capability tag.
// Matching is case-insensitive and substring-based in both directions,
// so "data" finds "data analysis" and "statistical analysis" finds
// "statistics" via its tag set.
func (c *Catalog) Lookup(tag string) []Module {
	needle := strings.ToLower(strings.TrimSpace(tag))
	if needle == "" {
		return nil
	}
	var out []Module
	for _, m := range c.modules {
		for _, t := range m.Tags {
			lt := strings.ToLower(t)
			if strings.Contains(lt, needle) || strings.Contains(needle, lt) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Has reports whether any module provides the given capability tag.
func (c *Catalog) Has(tag string) bool {
	return len(c.Lookup(tag)) > 0
}
