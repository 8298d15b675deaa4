package main

import (
	"os"

	"github.com/MrEthical07/goSession/internal/cli"
)

func main() {
	if err := cli.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
