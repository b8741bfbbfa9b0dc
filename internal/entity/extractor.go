// Package entity provides dictionary-based named-entity recognition over
// market and event text.
package entity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rewired-gh/polygraph/internal/models"
)

// Source is anything that can extract entities from free text. It exists so
// the graph assembler can swap in a smarter matcher without other changes.
type Source interface {
	Extract(text string) []models.ExtractedEntity
}

type entry struct {
	pattern *regexp.Regexp
	name    string
	key     string
	typ     models.EntityType
}

// Extractor matches text against the curated dictionaries with whole-word,
// case-insensitive patterns compiled once at construction. It is immutable
// after construction and safe for concurrent use.
type Extractor struct {
	entries []entry
}

// NewExtractor compiles the curated dictionaries into an Extractor.
// Panics if a dictionary contains duplicate normalized keys; the tables are
// static, so this is a programming error caught at startup.
func NewExtractor() *Extractor {
	var entries []entry
	for _, dict := range dictionaries {
		seen := make(map[string]bool, len(dict.names))
		for _, name := range dict.names {
			key := strings.ToLower(name)
			if seen[key] {
				panic(fmt.Sprintf("entity: duplicate key %q in %s dictionary", key, dict.typ))
			}
			seen[key] = true
			entries = append(entries, entry{
				pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`),
				name:    name,
				key:     key,
				typ:     dict.typ,
			})
		}
	}
	return &Extractor{entries: entries}
}

// Extract returns the distinct entities matched in text. Each dictionary
// entry yields at most one match; duplicates by normalized key are
// suppressed. The result order follows the fixed dictionary order, so
// identical text always yields an identical result.
func (e *Extractor) Extract(text string) []models.ExtractedEntity {
	if text == "" {
		return nil
	}

	var found []models.ExtractedEntity
	seen := make(map[string]bool)
	for _, ent := range e.entries {
		dedupKey := string(ent.typ) + ":" + ent.key
		if seen[dedupKey] {
			continue
		}
		if ent.pattern.MatchString(text) {
			seen[dedupKey] = true
			found = append(found, models.ExtractedEntity{
				Name: ent.name,
				Type: ent.typ,
				Key:  ent.key,
			})
		}
	}
	return found
}

// Shared returns the display names of entities present in both sets,
// matched by type and normalized key, in the order of a.
func Shared(a, b []models.ExtractedEntity) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := make(map[string]bool, len(b))
	for _, ent := range b {
		inB[string(ent.Type)+":"+ent.Key] = true
	}
	var names []string
	for _, ent := range a {
		if inB[string(ent.Type)+":"+ent.Key] {
			names = append(names, ent.Name)
		}
	}
	return names
}
