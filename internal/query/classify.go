package query

import "regexp"

// MultipleTables is the classification of any statement that joins.
const MultipleTables = "multiple"

var (
	reJoin = regexp.MustCompile(`(?i)\bjoin\b`)
	reFrom = regexp.MustCompile("(?i)\\bfrom\\s+(?:`(\\w+)`|\"(\\w+)\"|(\\w+))")
)

// Classify names the table a statement reads from. It is a lexical guess
// used only to label results: "multiple" when the text contains JOIN, the
// identifier after the first FROM otherwise, or "" when neither matches.
// Subqueries, CTEs and unions are not looked at beyond the first FROM.
func Classify(sql string) string {
	if reJoin.MatchString(sql) {
		return MultipleTables
	}
	m := reFrom.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
