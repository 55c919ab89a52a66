package main

import (
	"context"
	"fmt"
	"os"

	"github.com/raysh454/convotap/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
