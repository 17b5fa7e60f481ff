// fortuned hands out fortunes in sessions, locally or over the network.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fortuned/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fortuned: %v\n", err)
		os.Exit(1)
	}
}
