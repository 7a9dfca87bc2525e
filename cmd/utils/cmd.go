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

package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"
)

// errDatadirUsed is returned if the data directory is locked by another
// process.
var errDatadirUsed = errors.New("datadir already used by another process")

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// DatabaseConfig contains the settings of the backing key-value store.
type DatabaseConfig struct {
	DataDir string
	Engine  string // pebble or leveldb
	Cache   int    // Megabytes of memory allocated to the database
	Handles int    // Number of file handles
}

// SetDatabaseConfig applies database related command line flags to the config.
func SetDatabaseConfig(ctx *cli.Context, cfg *DatabaseConfig) {
	if ctx.IsSet(DataDirFlag.Name) {
		cfg.DataDir = ctx.String(DataDirFlag.Name)
	}
	if ctx.IsSet(DBEngineFlag.Name) {
		cfg.Engine = ctx.String(DBEngineFlag.Name)
	}
	if ctx.IsSet(CacheFlag.Name) {
		cfg.Cache = ctx.Int(CacheFlag.Name)
	}
	if ctx.IsSet(HandlesFlag.Name) {
		cfg.Handles = ctx.Int(HandlesFlag.Name)
	}
}

// Database is an opened key-value store holding the exclusive lock on its
// data directory.
type Database struct {
	ethdb.KeyValueStore
	lock *flock.Flock
}

// Close releases the database and the directory lock.
func (db *Database) Close() error {
	err := db.KeyValueStore.Close()
	if uerr := db.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

// OpenDatabase locks the data directory and opens the key-value store inside.
func OpenDatabase(cfg DatabaseConfig, readonly bool) (*Database, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("no data directory specified")
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(cfg.DataDir, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", errDatadirUsed, cfg.DataDir)
	}
	var (
		file = filepath.Join(cfg.DataDir, "chaindata")
		kvdb ethdb.KeyValueStore
	)
	switch strings.ToLower(cfg.Engine) {
	case "pebble":
		kvdb, err = pebble.New(file, cfg.Cache, cfg.Handles, "prunectl/db/chaindata/", readonly)
	case "leveldb":
		kvdb, err = leveldb.New(file, cfg.Cache, cfg.Handles, "prunectl/db/chaindata/", readonly)
	default:
		err = fmt.Errorf("unknown database engine %q", cfg.Engine)
	}
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	log.Info("Opened database", "engine", cfg.Engine, "path", file, "cache", cfg.Cache, "handles", cfg.Handles, "readonly", readonly)
	return &Database{KeyValueStore: kvdb, lock: lock}, nil
}
