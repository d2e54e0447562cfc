package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExportEnvConfig holds the inputs for exporting SSM parameters to a
// dotenv file.
type ExportEnvConfig struct {
	// OutputPath is where the .env file is written.
	OutputPath string

	// Environment is the bootstrap target environment (dev/staging/prod),
	// recorded in the file header.
	Environment string

	// SSM is the manager used to read parameters back.
	SSM *SSMManager

	// Stderr receives progress and summary output.
	Stderr io.Writer

	// IncludeLocalDefaults appends the non-SSM variables a local run needs
	// (APP_ENV, LocalStack endpoints, etc.) after the SSM-sourced values.
	IncludeLocalDefaults bool
}

// ssmToEnvMapping maps each bootstrap inventory key to the environment
// variable the config loader reads it from. The export walks the inventory
// in order, so the file layout matches the bootstrap phases.
var ssmToEnvMapping = map[string]string{
	"platform/base_url":        "PLATFORM_BASE_URL",
	"platform/api_key":         "PLATFORM_API_KEY",
	"platform/service_account": "PLATFORM_SERVICE_ACCOUNT",
	"platform/private_key":     "PLATFORM_PRIVATE_KEY",
	"catalog/tile":             "CATALOG_TILE",
	"catalog/mirrors":          "CATALOG_MIRRORS",
}

// localDevDefaults are the variables a local development run needs that are
// not sourced from SSM. They are written in sorted order after the
// SSM-sourced section when IncludeLocalDefaults is set.
//
// AWS_ENDPOINT_URL points at a local MinIO so the catalog probe can run
// against test buckets; CATALOG_PREFLIGHT defaults off because most local
// runs use -dry-run and have no archive access at all.
var localDevDefaults = map[string]string{
	"APP_ENV":           "local",
	"LOG_LEVEL":         "debug",
	"AWS_REGION":        "eu-central-1",
	"AWS_ENDPOINT_URL":  "http://localhost:9000",
	"CATALOG_PREFLIGHT": "false",
	"ARTIFACTS_DIR":     "runs",
	"ENABLE_METRICS":    "false",
	"PORT":              "8080",
}

// ExportEnvFile reads the bootstrap inventory back from SSM and writes a
// dotenv file for local development. SecureString parameters are decrypted;
// parameters missing from SSM (e.g., skipped optional steps) are omitted
// with a note on stderr.
//
// The file is written with 0600 permissions because it contains decrypted
// secrets. It returns an error if no parameters could be read at all, which
// usually means bootstrap has not been run for this environment.
func ExportEnvFile(ctx context.Context, cfg ExportEnvConfig) error {
	inventory := BuildInventory(NewValidatorWithDeps(nil))

	type envEntry struct {
		key   string
		value string
	}

	var exported []envEntry
	skipped := 0

	for _, step := range inventory {
		envVar, ok := ssmToEnvMapping[step.SSMCategoryKey]
		if !ok {
			continue
		}

		path := cfg.SSM.SSMPath(step.SSMCategoryKey)
		decrypt := step.ParamType == ParamSecureString

		value, err := cfg.SSM.GetParameterValue(ctx, path, decrypt)
		if err != nil {
			fmt.Fprintf(cfg.Stderr, "  Skipping %s: %v\n", envVar, err)
			skipped++
			continue
		}

		exported = append(exported, envEntry{key: envVar, value: value})
	}

	if len(exported) == 0 {
		return fmt.Errorf("no parameters could be read from SSM (environment %q); run bootstrap first", cfg.Environment)
	}

	var b strings.Builder
	b.WriteString("# Auto-generated by bootstrap --export-env\n")
	fmt.Fprintf(&b, "# Environment: %s\n", cfg.Environment)
	b.WriteString("#\n")
	b.WriteString("# SECURITY WARNING: this file contains decrypted secrets for local\n")
	b.WriteString("# development. Keep it out of version control and do not share it.\n")
	b.WriteString("\n")

	for _, e := range exported {
		b.WriteString(formatEnvLine(e.key, e.value))
		b.WriteString("\n")
	}

	if cfg.IncludeLocalDefaults {
		b.WriteString("\n")
		b.WriteString("# ------------------------------------------------------------\n")
		b.WriteString("# Local Development Defaults (not sourced from SSM)\n")
		b.WriteString("# ------------------------------------------------------------\n")

		keys := make([]string, 0, len(localDevDefaults))
		for k := range localDevDefaults {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(formatEnvLine(k, localDevDefaults[k]))
			b.WriteString("\n")
		}
	}

	if dir := filepath.Dir(cfg.OutputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %q: %w", dir, err)
		}
	}

	// 0600: the file holds decrypted secrets.
	if err := os.WriteFile(cfg.OutputPath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing env file %q: %w", cfg.OutputPath, err)
	}

	fmt.Fprintf(cfg.Stderr, "\nEnvironment file exported: %s\n", cfg.OutputPath)
	fmt.Fprintf(cfg.Stderr, "  Parameters written: %d\n", len(exported))
	if skipped > 0 {
		fmt.Fprintf(cfg.Stderr, "  Parameters skipped: %d (not found in SSM)\n", skipped)
	}
	fmt.Fprintf(cfg.Stderr, "  Permissions: 0600 (owner read/write only)\n")

	return nil
}

// formatEnvLine renders a single KEY=value dotenv line. Values containing
// characters that dotenv parsers treat specially (spaces, quotes, comments,
// variable expansion, newlines) are double-quoted with backslash escapes;
// everything else is written bare.
func formatEnvLine(key, value string) string {
	if value != "" && !strings.ContainsAny(value, " #\"${}\n\\") {
		return key + "=" + value
	}

	escaped := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
	).Replace(value)
	return key + `="` + escaped + `"`
}
