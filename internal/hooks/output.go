package hooks

import (
	"fmt"
	"os"
)

// ExitSilent exits with code 0, no stdout.
func ExitSilent() {
	os.Exit(0)
}

// ExitError logs to stderr and exits 0 (hooks must never crash the host).
func ExitError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "instinct hook: %v\n", err)
	}
	os.Exit(0)
}
