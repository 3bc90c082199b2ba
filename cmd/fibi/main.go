package main

import (
	"fmt"
	"os"

	"github.com/fibi-app/fibi/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fibi: %v\n", err)
		os.Exit(1)
	}
}
