package main

import (
	"os"

	"github.com/klairtech/thalassemia-quiz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
