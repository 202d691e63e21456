// Command archivist keeps a local, read-through archive of a microblogging
// service.
package main

import (
	"os"

	"github.com/roach88/archivist/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
