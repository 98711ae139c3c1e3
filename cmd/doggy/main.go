package main

import (
	"fmt"
	"os"

	"github.com/doggy-tui/doggy/internal/cli"
)

func main() {
	config, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "doggy: %v\n", err)
		os.Exit(2)
	}

	if err := cli.Run(config); err != nil {
		fmt.Fprintf(os.Stderr, "doggy: %v\n", err)
		os.Exit(1)
	}
}
