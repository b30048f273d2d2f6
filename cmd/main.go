package main

import (
	"os"

	"github.com/soundprediction/ontoscore/cmd/ontoscore"
)

func main() {
	if err := ontoscore.Execute(); err != nil {
		os.Exit(1)
	}
}
