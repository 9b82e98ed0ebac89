package nl2sql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koustreak/askdb/internal/database"
	"github.com/koustreak/askdb/internal/schema"
)

// BuildPrompt grounds question in snap. The model is told to use only the
// listed tables and columns and to answer with one bare SELECT statement.
// These are instructions only; Normalize and query.Validate enforce what
// actually reaches the database.
func BuildPrompt(dialect database.Dialect, snap *schema.Snapshot, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a strict SQL generator for %s.\n", dialect.DisplayName())
	b.WriteString("Use ONLY the schema provided. Never reference a table or column that is not listed.\n")
	b.WriteString(`If the question asks to "show me a table", always use SELECT * FROM <table>.` + "\n")
	b.WriteString("Schema:\n")
	b.WriteString(renderSchema(snap))
	b.WriteString("\n\n")
	b.WriteString("Convert this natural language question into ONE safe SELECT query.\n")
	b.WriteString("Return exactly one SELECT statement and nothing else.\n")
	b.WriteString("Do NOT return explanations, markdown, or backticks.\n")
	fmt.Fprintf(&b, "Question: %q\n", strings.TrimSpace(question))
	return b.String()
}

// renderSchema writes {"table": ["col (type)", ...]} as indented JSON in
// snapshot order.
func renderSchema(snap *schema.Snapshot) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, table := range snap.Tables() {
		if i > 0 {
			buf.WriteByte(',')
		}
		cols, _ := snap.Columns(table)
		described := make([]string, len(cols))
		for j, c := range cols {
			described[j] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		key, _ := json.Marshal(table)
		val, _ := json.Marshal(described)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return buf.String()
	}
	return out.String()
}
