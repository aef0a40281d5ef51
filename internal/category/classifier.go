package category

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

type Category string

const (
	Transportation Category = "Transportation"
	Water          Category = "Water"
	Energy         Category = "Energy"
	Municipal      Category = "Municipal"
	Federal        Category = "Federal"
)

// Fallback is returned for absent or unmatched codes.
const Fallback = Federal

//go:embed table.yaml
var defaultTableYAML []byte

// All lists the categories in display order.
func All() []Category {
	return []Category{Transportation, Water, Energy, Municipal, Federal}
}

func (c Category) Valid() bool {
	for _, known := range All() {
		if c == known {
			return true
		}
	}
	return false
}

type Entry struct {
	Prefix   string   `yaml:"prefix"`
	Category Category `yaml:"category"`
}

// Classifier maps hierarchical industry codes to categories by longest prefix.
type Classifier struct {
	table  map[string]Category
	maxLen int
}

// New merges entry lists in order. For a repeated prefix the last entry wins.
func New(tables ...[]Entry) *Classifier {
	c := &Classifier{table: make(map[string]Category)}
	for _, entries := range tables {
		for _, e := range entries {
			prefix := normalizeCode(e.Prefix)
			if prefix == "" {
				continue
			}
			c.table[prefix] = e.Category
			if len(prefix) > c.maxLen {
				c.maxLen = len(prefix)
			}
		}
	}
	return c
}

// ParseTable decodes a YAML table and rejects unknown categories.
func ParseTable(raw []byte) ([]Entry, error) {
	var doc struct {
		Entries []Entry `yaml:"entries"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding category table: %w", err)
	}
	for i, e := range doc.Entries {
		if strings.TrimSpace(e.Prefix) == "" {
			return nil, fmt.Errorf("entry %d: empty prefix", i)
		}
		if !e.Category.Valid() {
			return nil, fmt.Errorf("entry %d (%s): unknown category %q", i, e.Prefix, e.Category)
		}
	}
	return doc.Entries, nil
}

var defaultClassifier = sync.OnceValue(func() *Classifier {
	entries, err := ParseTable(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("category: embedded table: %v", err))
	}
	return New(entries)
})

// Default returns the classifier built from the embedded table.
func Default() *Classifier {
	return defaultClassifier()
}

// Classify tries the full code and then shorter prefixes, one character at a time.
func (c *Classifier) Classify(code string) Category {
	cat, _ := c.lookup(code)
	return cat
}

// ClassifyOpportunity prefers the NAICS code and falls back to the PSC
// classification code when the NAICS code is absent or unmatched.
func (c *Classifier) ClassifyOpportunity(naics, classification string) Category {
	if cat, ok := c.lookup(naics); ok {
		return cat
	}
	cat, _ := c.lookup(classification)
	return cat
}

func (c *Classifier) lookup(code string) (Category, bool) {
	code = normalizeCode(code)
	if len(code) > c.maxLen {
		code = code[:c.maxLen]
	}
	for n := len(code); n > 0; n-- {
		if cat, ok := c.table[code[:n]]; ok {
			return cat, true
		}
	}
	return Fallback, false
}

// Len reports the number of distinct prefixes.
func (c *Classifier) Len() int {
	return len(c.table)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}
