// Command editor-bridge calls editor services from the shell and runs a simulated editor
// endpoint for local work.
//
//	editor-bridge call FoliageService.scatter_foliage '{"mesh_path":"/Game/Foliage/SM_Fern","count":25}'
//	editor-bridge stub
//	editor-bridge contracts SkeletonService
//
// Settings come from EDITOR_BRIDGE_* environment variables; flags override them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
