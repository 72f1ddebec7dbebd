package main

import (
	"fmt"
	"os"

	"github.com/lazypower/instinct/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "instinct: %v\n", err)
		os.Exit(1)
	}
}
