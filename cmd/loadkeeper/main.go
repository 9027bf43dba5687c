package main

import (
	"os"

	"github.com/solatis/loadkeeper/cmd/loadkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
