// Package query compiles user-defined search criteria into Gmail query strings.
package query

import (
	"fmt"
	"strings"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DateRange bounds the search by date. Tokens are passed to the
// provider verbatim, in the provider's own date format (e.g. 2024/01/01).
type DateRange struct {
	After  string `koanf:"after"`
	Before string `koanf:"before"`
}

// TermGroup is a set of search terms combined with a logical operator.
type TermGroup struct {
	Terms           []string `koanf:"terms"`
	LogicalOperator string   `koanf:"logical_operator"`
}

// Criteria is the user-declared filter over date range and
// include/exclude terms. Loaded once per run and immutable thereafter.
type Criteria struct {
	DateRange DateRange `koanf:"date_range"`
	Include   TermGroup `koanf:"include"`
	Exclude   TermGroup `koanf:"exclude"`
}

// Load reads and parses a criteria JSON file. A missing or malformed
// file is fatal to the run, so any error here aborts startup.
func Load(path string) (Criteria, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kJson.Parser()); err != nil {
		return Criteria{}, fmt.Errorf("loading criteria file %s: %w", path, err)
	}

	var c Criteria
	if err := k.Unmarshal("", &c); err != nil {
		return Criteria{}, fmt.Errorf("unmarshaling criteria: %w", err)
	}

	return c, nil
}

// Compile turns criteria into a single Gmail search query string.
// Fragment order is fixed: after, before, include, exclude. Sections
// with no content emit nothing; empty criteria compile to the empty
// string, which matches everything by provider convention. Terms are
// passed through verbatim, so provider metacharacters in a term are
// not escaped.
func Compile(c Criteria) string {
	var fragments []string

	if c.DateRange.After != "" {
		fragments = append(fragments, "after:"+c.DateRange.After)
	}
	if c.DateRange.Before != "" {
		fragments = append(fragments, "before:"+c.DateRange.Before)
	}
	if len(c.Include.Terms) > 0 {
		fragments = append(fragments, "("+joinTerms(c.Include.Terms, c.Include.operator("AND"))+")")
	}
	if len(c.Exclude.Terms) > 0 {
		fragments = append(fragments, "-("+joinTerms(c.Exclude.Terms, c.Exclude.operator("OR"))+")")
	}

	return strings.Join(fragments, " ")
}

func (g TermGroup) operator(fallback string) string {
	if g.LogicalOperator != "" {
		return g.LogicalOperator
	}
	return fallback
}

func joinTerms(terms []string, operator string) string {
	return strings.Join(terms, " "+operator+" ")
}
