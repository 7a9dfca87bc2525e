// Copyright 2014 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// prunectl is a command-line tool to prune the state of a journaled node
// database.
package main

import (
	"fmt"
	"os"
	"runtime"
	"slices"

	"github.com/sunyihoo/journalprune/cmd/utils"
	"github.com/sunyihoo/journalprune/internal/debug"
	"github.com/sunyihoo/journalprune/internal/flags"
	"github.com/sunyihoo/journalprune/internal/version"
	"github.com/urfave/cli/v2"
)

const (
	clientIdentifier = "prunectl" // Client identifier used in version output
)

var app = flags.NewApp("the journaled state pruning tool")

var versionCommand = &cli.Command{
	Action:    printVersion,
	Name:      "version",
	Usage:     "Print version numbers",
	ArgsUsage: " ",
	Description: `
The output of this command is supposed to be machine-readable.
`,
}

func init() {
	app.Commands = []*cli.Command{
		pruneCommand,
		inspectCommand,
		compactCommand,
		dumpConfigCommand,
		versionCommand,
	}
	slices.SortFunc(app.Commands, func(a, b *cli.Command) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	app.Flags = slices.Concat(
		[]cli.Flag{configFileFlag},
		utils.DatabaseFlags,
		utils.PruningFlags,
		debug.Flags,
	)
	app.Before = func(ctx *cli.Context) error {
		return debug.Setup(ctx)
	}
	app.After = func(ctx *cli.Context) error {
		debug.Exit()
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printVersion(ctx *cli.Context) error {
	git, _ := version.VCS()

	fmt.Println(version.ClientName(clientIdentifier))
	fmt.Println("Version:", version.WithMeta)
	if git.Commit != "" {
		fmt.Println("Git Commit:", git.Commit)
	}
	if git.Date != "" {
		fmt.Println("Git Commit Date:", git.Date)
	}
	fmt.Println("Architecture:", runtime.GOARCH)
	fmt.Println("Go Version:", runtime.Version())
	fmt.Println("Operating System:", runtime.GOOS)
	fmt.Printf("GOPATH=%s\n", os.Getenv("GOPATH"))
	fmt.Printf("GOROOT=%s\n", runtime.GOROOT())
	return nil
}
