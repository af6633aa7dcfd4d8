package main

import (
	"os"

	"github.com/bisegni/jsldal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
