// Command demoserver starts the local demo chat backend.
// Usage: go run ./cmd/demoserver [addr]
// Default addr: 127.0.0.1:9999
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/convotap/internal/demoserver"
	"github.com/raysh454/convotap/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	// Optional: custom listen address from command line
	if len(os.Args) > 1 {
		cfg.Addr = os.Args[1]
	}

	fmt.Println("===========================================")
	fmt.Println("   convotap demo chat")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Printf("Open http://%s/ in the browser convotap watches and run the daemon with\n", cfg.Addr)
	fmt.Printf("  convotap serve --target-endpoint http://%s%s\n", cfg.Addr, demoserver.EndpointPath)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := demoserver.NewDemoServer(cfg, logging.NewStdoutLogger("demoserver"))
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
