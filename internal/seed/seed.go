// Package seed provides demo data seeding for the record store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log"

	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/recordview/internal/query"
	"github.com/matthewbaird/recordview/internal/record"
)

//go:embed demo.yaml
var demo []byte

// Store is where seeded records go.
type Store interface {
	query.Source
	Put(ctx context.Context, rows ...*record.Row) error
}

// Fixture is the YAML shape of a seed file.
type Fixture struct {
	Records []Record `yaml:"records"`
}

// Record is one seeded row.
type Record struct {
	Area   string            `yaml:"area"`
	ID     string            `yaml:"id"`
	Values map[string]string `yaml:"values"`
	Links  []Link            `yaml:"links"`
}

// Link points at another record in "AREA.id" form.
type Link struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
}

// Demo returns the built-in demo fixture.
func Demo() Fixture {
	f, err := Parse(demo)
	if err != nil {
		panic(fmt.Sprintf("seed: demo fixture: %v", err))
	}
	return f
}

// Read parses a fixture from r.
func Read(r io.Reader) (Fixture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Fixture{}, fmt.Errorf("reading fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML fixture.
func Parse(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parsing fixture: %w", err)
	}
	return f, nil
}

// Rows converts the fixture into rows.
func (f Fixture) Rows() ([]*record.Row, error) {
	rows := make([]*record.Row, 0, len(f.Records))
	for i, rec := range f.Records {
		if rec.Area == "" || rec.ID == "" {
			return nil, fmt.Errorf("record %d: area and id are required", i)
		}
		row := record.NewRow(record.Ref{InfoArea: rec.Area, RecordID: rec.ID}, rec.Values)
		for _, l := range rec.Links {
			target, err := record.ParseRef(l.Target)
			if err != nil {
				return nil, fmt.Errorf("record %s.%s: %w", rec.Area, rec.ID, err)
			}
			row.Links = append(row.Links, record.Link{Name: l.Name, Target: target})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Apply writes the fixture into st. If the first record's info area
// already holds data, it skips seeding and returns 0.
func Apply(ctx context.Context, st Store, f Fixture) (int, error) {
	rows, err := f.Rows()
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	area := rows[0].Ref.InfoArea
	count, err := st.Count(ctx, query.Query{InfoArea: area})
	if err != nil {
		return 0, fmt.Errorf("checking %s records: %w", area, err)
	}
	if count > 0 {
		log.Printf("records already seeded (%d %s found), skipping", count, area)
		return 0, nil
	}
	if err := st.Put(ctx, rows...); err != nil {
		return 0, fmt.Errorf("seeding records: %w", err)
	}
	return len(rows), nil
}
