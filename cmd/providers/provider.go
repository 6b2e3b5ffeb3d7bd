// Package providers materializes tables from databases, local exports and
// object storage. Checks only ever see the resulting tables.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DanyaHDanny/tafordqe/cmd/formatters"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

var (
	ErrLocatorEmpty     = errors.New("locator needs one of query, table or path")
	ErrLocatorAmbiguous = errors.New("locator must set only one of query, table or path")
	ErrNoProvider       = errors.New("no provider configured for locator")
	ErrUnsupportedPath  = errors.New("unsupported path")
)

// Provider turns a locator into a fully materialized table.
type Provider interface {
	Fetch(ctx context.Context, loc Locator) (*quality.Table, error)
}

// Locator says where a dataset lives.
type Locator struct {
	Query string `yaml:"query,omitempty" json:"query,omitempty"`
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`

	// File options. Format is detected from the file extension when empty.
	Format            string `yaml:"format,omitempty" json:"format,omitempty"`
	Pattern           string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	IncludeSubfolders bool   `yaml:"include_subfolders,omitempty" json:"include_subfolders,omitempty"`
	PartitionColumns  bool   `yaml:"partition_columns,omitempty" json:"partition_columns,omitempty"`

	// Columns projects the fetched table.
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

func (l Locator) Validate() error {
	set := 0
	for _, v := range []string{l.Query, l.Table, l.Path} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return ErrLocatorEmpty
	case set > 1:
		return ErrLocatorAmbiguous
	}
	if l.Format != "" && !formatters.IsSupported(l.Format) {
		return fmt.Errorf("%w: %s", formatters.ErrUnsupportedFormat, l.Format)
	}
	return nil
}

// IsSQL reports whether the locator is served by a database.
func (l Locator) IsSQL() bool { return l.Query != "" || l.Table != "" }

// IsS3 reports whether the locator points at object storage.
func (l Locator) IsS3() bool { return strings.HasPrefix(l.Path, "s3://") }

func (l Locator) String() string {
	switch {
	case l.Table != "":
		return "table " + l.Table
	case l.Query != "":
		q := strings.Join(strings.Fields(l.Query), " ")
		if len(q) > 60 {
			q = q[:57] + "..."
		}
		return "query " + q
	}
	return "path " + l.Path
}

// Router dispatches a locator to the provider for its backend.
type Router struct {
	SQL   Provider
	Files Provider
	S3    Provider
}

func (r *Router) Fetch(ctx context.Context, loc Locator) (*quality.Table, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	var p Provider
	switch {
	case loc.IsSQL():
		p = r.SQL
	case loc.IsS3():
		p = r.S3
	default:
		p = r.Files
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, loc)
	}
	return p.Fetch(ctx, loc)
}

func project(t *quality.Table, columns []string) (*quality.Table, error) {
	if len(columns) == 0 {
		return t, nil
	}
	return t.Project(columns...)
}
