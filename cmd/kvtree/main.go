// Package main provides the kvtree CLI, which reads and writes nested values
// in a Bolt or Badger database through the kvtree storage layer.
//
// Usage:
//
//	kvtree [--db FILE] [--backend bolt|badger] [--encoding msgpack|json] [--journal DIR] <command> [args]
//
// Commands:
//
//	get     - print the value at a path as YAML
//	set     - store a YAML value at a path
//	delete  - delete a path and everything under it
//	import  - store a YAML or JSON file at a path
//	export  - print a subtree as YAML or JSON
//	dump    - print the tree, raw records and stats
//	check   - verify manifest consistency
//	replay  - apply a change journal to an empty database
package main

import (
	"fmt"
	"os"

	"github.com/andreyvit/kvtree/cmd/kvtree/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
