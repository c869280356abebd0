package main

import (
	"os"

	"github.com/vudinhan2525/CamQuizz-sub002/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
