package main

import (
	"errors"
	"flag"
	"io/fs"
	"os"

	"github.com/as/log"
	"github.com/joho/godotenv"
)

// envflags maps environment variables onto flag defaults. Flags given on
// the command line still win because configure runs before flag.Parse.
var envflags = map[string]string{
	"REWRAP_LISTEN":   "serve",
	"REWRAP_BASE":     "base",
	"REWRAP_MAXHTTP":  "maxhttp",
	"REWRAP_DEADBAND": "deadband",
	"REWRAP_DEBUG":    "debug",
}

// configure loads a .env file if one exists (local development only) and
// applies the environment to the flag set.
func configure() {
	if err := loadDotenv(); err != nil {
		log.Debug.Add("err", err).Printf("skipping .env")
	}
	applyEnv(flag.CommandLine, os.Getenv)
}

// loadDotenv is godotenv.Load, except that a missing file is not an error.
func loadDotenv(files ...string) error {
	err := godotenv.Load(files...)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// applyEnv sets flags from the environment. A value that fails to parse
// leaves the flag at its default; flag.Value.Set may have clobbered it.
func applyEnv(set *flag.FlagSet, getenv func(string) string) {
	for key, name := range envflags {
		val := getenv(key)
		if val == "" {
			continue
		}
		if err := set.Set(name, val); err != nil {
			log.Error.Add("env", key, "value", val, "err", err).Printf("ignoring bad environment value")
			if f := set.Lookup(name); f != nil {
				set.Set(name, f.DefValue)
			}
		}
	}
}
