// Command melchi replicates change data from a Snowflake source
// warehouse into a DuckDB target warehouse (spec.md §6).
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
