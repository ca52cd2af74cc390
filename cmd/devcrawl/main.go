// # cmd/devcrawl/main.go
package main

import (
	"devcrawl/internal/ui/cli"
	"os"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
