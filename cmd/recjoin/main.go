// Command recjoin joins the personal, vehicle, employment and update-status
// datasets on SSN, splits stale records from current ones and reports the
// most common vehicle make per gender.
//
// Configuration comes from built-in defaults, an optional YAML/JSON file
// (--config), RECJOIN_* environment variables and flags, in increasing order
// of precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "recjoin: %v\n", err)
		stop()
		os.Exit(1)
	}
}
