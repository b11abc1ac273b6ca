// Package provider turns raw bank statement exports into normalized
// statement rows ready for persistence.
package provider

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// StatementRow is one normalized transaction extracted from an export.
// Amount carries the parsed signed value; AmountRaw preserves the original
// cell text for auditing.
type StatementRow struct {
	TransactionDate time.Time
	Amount          float64
	AmountRaw       string
	Description     string
	Detail          string
	Account         string
	Currency        string
	CategoryHint    string
	Original        map[string]string
}

// ParseStats reports what happened to the source rows. Rows missing a date,
// amount, or description are dropped rather than failing the parse.
type ParseStats struct {
	RowsRead    int
	RowsYielded int
	RowsDropped int
}

// Provider parses one bank's export format.
type Provider interface {
	Name() string
	Parse(ctx context.Context, data []byte) ([]StatementRow, *ParseStats, error)
}

// Registry holds the known providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
