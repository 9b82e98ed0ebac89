// Command askdb answers natural-language questions against a live MySQL or
// PostgreSQL database by having a language model write the SQL.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
