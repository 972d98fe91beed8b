package main

import (
	"fmt"
	"os"

	"github.com/thep2p/go-eth-devkit/internal/app"
)

func main() {
	if err := app.LoadEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctl := app.New()
	if err := ctl.Run(os.Args); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(app.ExitCode(err))
	}
}
