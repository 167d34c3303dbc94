package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/eqb/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Reported errors were already printed by the command.
	var reported *cli.ReportedError
	if !errors.As(err, &reported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitStatus(err))
}
