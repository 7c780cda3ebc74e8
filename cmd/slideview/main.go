// Command slideview inspects multi-resolution images and replays scripted
// viewport changes through the tile manager, writing the composited view
// to PNG.
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
		fmt.Fprintln(os.Stderr, "slideview:", err)
		stop()
		os.Exit(1)
	}
}
