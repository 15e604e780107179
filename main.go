package main

import (
	"fmt"
	"os"

	_ "github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/mssql"    // Register mssql adapter
	_ "github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/mysql"    // Register mysql adapter
	_ "github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/postgres" // Register postgres adapter
	_ "github.com/ekaya-inc/ekaya-querykit/pkg/adapters/datasource/sqlite"   // Register sqlite adapter
	"github.com/ekaya-inc/ekaya-querykit/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

// Adapters register themselves only when built with their tag
// (mysql, postgres, mssql, sqlite) or with all_adapters.
func main() {
	if err := cli.NewRootCommand(Version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
