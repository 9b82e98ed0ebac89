package nl2sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already clean", "SELECT * FROM orders", "SELECT * FROM orders"},
		{"sql fence", "```sql\nSELECT * FROM orders;\n```", "SELECT * FROM orders"},
		{"upper-case fence", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nSELECT id FROM customers\n```", "SELECT id FROM customers"},
		{"fence mid-text", "Here you go: ```sql SELECT 1 ```", "Here you go:  SELECT 1"},
		{"single backticks", "`SELECT * FROM orders`", "SELECT * FROM orders"},
		{"backticks and semicolon outside", "`SELECT 1`;", "SELECT 1"},
		{"backticks with semicolon inside", "`SELECT 1;`", "SELECT 1"},
		{"surrounding whitespace", "\n\t  SELECT 1  \n", "SELECT 1"},
		{"many semicolons", "SELECT 1;;;  \n", "SELECT 1"},
		{"spaced semicolons", "SELECT 1; ;", "SELECT 1"},
		{"quoted identifier at end", "SELECT * FROM `orders`", "SELECT * FROM `orders`"},
		{"quoted identifier at end with semicolon", "SELECT * FROM `orders`;", "SELECT * FROM `orders`"},
		{"wrapped and quoted identifier", "`SELECT * FROM `orders``", "SELECT * FROM `orders`"},
		{"inner semicolon kept", "SELECT ';' AS s", "SELECT ';' AS s"},
		{"empty", "", ""},
		{"only fence", "```sql\n```", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestNormalize_WrappedInnerContent(t *testing.T) {
	inner := []string{
		"SELECT * FROM orders",
		"SELECT c.name, COUNT(*) FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name",
		"SELECT id\nFROM customers\nWHERE name = 'A'",
	}
	wrappers := []func(string) string{
		func(s string) string { return "```sql\n" + s + "\n```" },
		func(s string) string { return "```" + s + "```" },
		func(s string) string { return "`" + s + "`" },
		func(s string) string { return "  ```sql\n" + s + ";\n```  " },
		func(s string) string { return "`" + s + ";`\n" },
	}

	for _, s := range inner {
		for _, wrap := range wrappers {
			raw := wrap(s)
			got := Normalize(raw)
			assert.Equal(t, s, got, "raw=%q", raw)
			assert.False(t, strings.Contains(got, "```"))
			assert.False(t, strings.HasSuffix(got, ";"))
			assert.Equal(t, got, Normalize(got))
		}
	}
}
