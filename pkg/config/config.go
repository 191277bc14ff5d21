// Kelvin uses flags plus a single optional TOML config file for
// configuration: the file sets defaults, and any flag passed on the command
// line wins over the file. The file's keys are matched directly against
// registered flag names (e.g. `address = "0.0.0.0:6380"` sets -address).

package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

var configFilePath = flag.String("config_file", "", "Path to an optional TOML configuration file.")

// skippedFlags lists command-line flags that are never expected to appear
// in the config file, either because they're meta-flags (print_version) or
// because setting them from a file would be nonsensical (config_file
// itself). go test's own test.* flags are skipped by prefix instead.
var skippedFlags = []string{"print_version", "config_file"}

// InitFlags parses the command line, then — if -config_file names a
// readable TOML file — applies every key in it to the matching flag,
// provided that flag wasn't already explicitly set on the command line.
// It must be called after every package has registered its flags (so
// typically first thing in main) and before any flag value is read.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		return
	}

	raw, err := os.ReadFile(*configFilePath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath)
		return
	}
	if err != nil {
		slog.Error("Failed to read config file.", "error", err)
		return
	}

	var values map[string]any
	if _, err := toml.Decode(string(raw), &values); err != nil {
		slog.Error("Failed to parse config file.", "path", *configFilePath, "error", err)
		return
	}

	explicitlySet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicitlySet[f.Name] = true })

	for name, value := range values {
		if explicitlySet[name] {
			continue // A command-line flag always wins over the config file.
		}
		if flag.Lookup(name) == nil {
			slog.Warn("Config file sets an unknown flag; ignoring.", "flag", name)
			continue
		}
		if err := flag.Set(name, fmt.Sprint(value)); err != nil {
			slog.Error("Failed to set flag from config file.", "flag", name, "error", err)
		}
	}
}

// CollectUnregisteredFlags walks every currently registered flag that isn't
// one of skippedFlags and isn't a go test flag. Since InitFlags addresses
// flags by name, every such flag is already nameable from the config file,
// so the returned slice is always empty.
func CollectUnregisteredFlags() []error {
	var errs []error
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "test.") {
			return
		}
		if slices.Contains(skippedFlags, f.Name) {
			return
		}
		// Every non-skipped flag is config-file-addressable by construction
		// (InitFlags matches on name, not on a fixed schema), so there's
		// nothing further to validate per flag today. This hook exists so a
		// future schema-validated config format has a single call site to
		// extend.
		_ = f
	})
	return errs
}

// SetTestFlag sets a flag to a specific value for the duration of the test.
func SetTestFlag(t *testing.T, name, value string) {
	t.Helper()
	flagHolder := flag.Lookup(name)
	require.NotNil(t, flagHolder, "Flag %s not found", name)
	if flagHolder != nil { // Revert the flag value back to its original when the test is done.
		prevValue := flagHolder.Value.String()
		t.Cleanup(func() { require.NoError(t, flag.Set(name, prevValue)) })
	}
	require.NoError(t, flag.Set(name, value))
}
