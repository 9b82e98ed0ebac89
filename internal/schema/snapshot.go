// Package schema builds point-in-time snapshots of a connected database's
// tables and columns.
package schema

import (
	"bytes"
	"encoding/json"

	"github.com/koustreak/askdb/internal/database"
	"go.yaml.in/yaml/v3"
)

// Snapshot maps table name to its ordered columns. Iteration order is the
// order the database listed the tables in.
type Snapshot struct {
	order   []string
	columns map[string][]database.Column
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{columns: make(map[string][]database.Column)}
}

// Add appends table with cols. Adding an existing table replaces its columns
// without moving it.
func (s *Snapshot) Add(table string, cols []database.Column) {
	if _, ok := s.columns[table]; !ok {
		s.order = append(s.order, table)
	}
	if cols == nil {
		cols = []database.Column{}
	}
	s.columns[table] = cols
}

// Tables returns table names in snapshot order.
func (s *Snapshot) Tables() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Columns returns the columns of table and whether the table is known.
func (s *Snapshot) Columns(table string) ([]database.Column, bool) {
	cols, ok := s.columns[table]
	return cols, ok
}

// Len is the number of tables.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// MarshalJSON encodes {"table": [{"name": .., "type": ..}, ...], ...} with
// keys in snapshot order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, table := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(table)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.columns[table])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML emits a mapping node so table order survives encoding.
func (s *Snapshot) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, table := range s.order {
		var val yaml.Node
		if err := val.Encode(s.columns[table]); err != nil {
			return nil, err
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: table},
			&val,
		)
	}
	return root, nil
}
