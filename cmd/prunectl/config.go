// Copyright 2017 The go-ethereum Authors
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

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/sunyihoo/journalprune/cmd/utils"
	"github.com/sunyihoo/journalprune/core/state/pruner"
	"github.com/sunyihoo/journalprune/internal/flags"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
	"github.com/urfave/cli/v2"
)

var (
	dumpConfigCommand = &cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Export configuration values in a TOML format",
		ArgsUsage:   "<dumpfile (optional)>",
		Flags:       append(append([]cli.Flag{configFileFlag}, utils.DatabaseFlags...), utils.PruningFlags...),
		Description: `Export configuration values in TOML format (to stdout by default).`,
	}

	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.MiscCategory,
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type prunectlConfig struct {
	Database utils.DatabaseConfig
	Journal  journaldb.Config
	Pruner   pruner.Config
}

func loadConfig(file string, cfg *prunectlConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func defaultDatabaseConfig() utils.DatabaseConfig {
	return utils.DatabaseConfig{
		DataDir: utils.DataDirFlag.Value.String(),
		Engine:  utils.DBEngineFlag.Value,
		Cache:   utils.CacheFlag.Value,
		Handles: utils.HandlesFlag.Value,
	}
}

// loadBaseConfig loads the prunectlConfig based on the given command line
// parameters and config file.
func loadBaseConfig(ctx *cli.Context) prunectlConfig {
	// Load defaults
	cfg := prunectlConfig{
		Database: defaultDatabaseConfig(),
		Journal:  journaldb.Config{CleanCacheSize: utils.CacheJournalFlag.Value * 1024 * 1024},
		Pruner:   pruner.Defaults,
	}

	// Load config file.
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}

	// Apply flags.
	if err := flags.CheckExclusive(ctx, utils.PruneWindowFlag, utils.PruneForkDepthFlag); err != nil {
		utils.Fatalf("%v", err)
	}
	if err := flags.CheckExclusive(ctx, utils.PruneWindowFlag, utils.PruneMainDepthFlag); err != nil {
		utils.Fatalf("%v", err)
	}
	utils.SetDatabaseConfig(ctx, &cfg.Database)
	utils.SetPrunerConfig(ctx, &cfg.Pruner)
	if ctx.IsSet(utils.CacheJournalFlag.Name) {
		cfg.Journal.CleanCacheSize = ctx.Int(utils.CacheJournalFlag.Name) * 1024 * 1024
	}
	return cfg
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg := loadBaseConfig(ctx)
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.Write(out)

	return nil
}
