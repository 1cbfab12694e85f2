package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// A run cut short by SIGINT already logged its reason.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "wavebatch:", err)
		}
		os.Exit(1)
	}
}
