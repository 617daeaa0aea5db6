package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/goodtune/screentimer/internal/config"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the screentimer configuration file for syntax and semantic errors.`,
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with non-default values highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	defaults, err := config.Defaults()
	if err != nil {
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath, defaults)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(out, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(out)
		_, _ = red.Fprintf(out, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(out, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(out, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with modified values highlighted
	if validateDump {
		_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(out, "# FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))

		if err := dumpConfig(out, cfg, defaults); err != nil {
			return fmt.Errorf("failed to dump configuration: %w", err)
		}
	}

	return nil
}

// findUnknownKeys reads the config file and reports keys that no setting
// consumes. Weekday names under quota.daily_limits are checked by Load.
func findUnknownKeys(configPath string, defaults *config.Config) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	valid, err := flattenConfig(defaults)
	if err != nil {
		return nil, err
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if _, ok := valid[key]; ok {
			continue
		}
		if strings.HasPrefix(key, "quota.daily_limits.") {
			continue
		}
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)

	return unknown, nil
}

// flattenConfig returns every leaf setting keyed by its dotted path.
func flattenConfig(cfg *config.Config) (map[string]interface{}, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	flat := make(map[string]interface{})
	flatten("", tree, flat)
	return flat, nil
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for key, value := range in {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok && len(nested) > 0 {
			flatten(path, nested, out)
			continue
		}
		out[path] = value
	}
}

// dumpConfig writes cfg as YAML. Lines whose value differs from the default
// are highlighted and annotated with the default.
func dumpConfig(w io.Writer, cfg, defaults *config.Config) error {
	redacted := *cfg
	redacted.Storage.Redis.Password = redactPassword(cfg.Storage.Redis.Password)

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return err
	}
	current, err := flattenConfig(&redacted)
	if err != nil {
		return err
	}
	initial, err := flattenConfig(defaults)
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	type level struct {
		indent int
		key    string
	}
	var stack []level

	pathOf := func(key string) string {
		parts := make([]string, 0, len(stack)+1)
		for _, l := range stack {
			parts = append(parts, l.key)
		}
		if key != "" {
			parts = append(parts, key)
		}
		return strings.Join(parts, ".")
	}

	modified := func(path string) (interface{}, bool) {
		value, ok := current[path]
		if !ok {
			return nil, false
		}
		return initial[path], !reflect.DeepEqual(value, initial[path])
	}

	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)

		if strings.HasPrefix(trimmed, "- ") {
			if _, changed := modified(pathOf("")); changed {
				_, _ = yellow.Fprintln(w, line)
			} else {
				_, _ = green.Fprintln(w, line)
			}
			continue
		}

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		key, value, _ := strings.Cut(trimmed, ":")
		path := pathOf(key)

		if strings.TrimSpace(value) == "" {
			stack = append(stack, level{indent: indent, key: key})
			if _, leaf := current[path]; !leaf {
				_, _ = cyan.Fprintln(w, line)
				continue
			}
		}

		if def, changed := modified(path); changed {
			_, _ = yellow.Fprintf(w, "%s  # default: %v\n", line, def)
		} else {
			_, _ = green.Fprintln(w, line)
		}
	}

	_, _ = fmt.Fprintln(w, strings.Repeat("=", 80))
	return nil
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
