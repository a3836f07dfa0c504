// Command familytree records people and their family relationships.
package main

import (
	"context"
	"fmt"
	"os"

	"familytree/internal/cli"
)

func main() {
	root := cli.NewRootCommand(cli.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
