package main

import (
	"fmt"
	"os"

	"github.com/containifyci/builder/cmd"
	"github.com/containifyci/builder/pkg/errs"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	repo    = "github.com/containifyci/builder"
)

func main() {
	cmd.SetVersionInfo(version, commit, date, repo)
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errs.ExitStatus(err))
	}
}
