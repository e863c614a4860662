// Package commands implements the sdkctl command tree.
package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adamwoolhether/simplesdk"
	"github.com/adamwoolhether/simplesdk/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Output formats.
const (
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
	OutputFormatTable = "table"
)

var (
	ErrInvalidOutput   = errors.New("output must be one of json, yaml or table")
	ErrInvalidKeyValue = errors.New("expected key=value")
)

// NewRootCommand builds the sdkctl command tree. Each call gets its own
// configuration, so trees can be built side by side in tests.
func NewRootCommand(version, commit string) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "sdkctl",
		Short: "Call a JSON REST API from the command line",
		Long: `sdkctl issues get, create, update and delete requests against a JSON
REST API and prints the materialized responses.

Settings are read from flags, SIMPLESDK_* environment variables and an
optional YAML config file, in that order of precedence.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.simplesdk/config.yaml)")
	flags.StringP("base-path", "b", client.DefaultBasePath, "API root")
	flags.StringP("token", "t", "", "API token sent as the Authorization header")
	flags.StringP("output", "o", OutputFormatJSON, "output format (json, yaml, table)")
	flags.StringArray("header", nil, "persistent header as key=value, repeatable")
	flags.Duration("timeout", 30*time.Second, "overall request timeout")
	flags.Int("rps", 0, "client-side requests per second limit, 0 disables")
	flags.BoolP("verbose", "v", false, "log requests to stderr")

	v.SetDefault("user-agent", "sdkctl/"+version)

	for _, name := range []string{"config", "base-path", "token", "output", "header", "timeout", "rps", "verbose"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(
		newGetCommand(v),
		newCreateCommand(v),
		newUpdateCommand(v),
		newDeleteCommand(v),
	)

	return cmd
}

func loadConfig(v *viper.Viper) error {
	v.SetEnvPrefix("SIMPLESDK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	v.AddConfigPath(filepath.Join(home, ".simplesdk"))
	v.SetConfigType("yaml")
	v.SetConfigName("config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	return nil
}

// newClient builds a client from the resolved configuration.
func newClient(v *viper.Viper, stderr io.Writer) (*client.Client, error) {
	if err := checkOutput(v.GetString("output")); err != nil {
		return nil, err
	}

	headers, err := keyValues(v.GetStringSlice("header"))
	if err != nil {
		return nil, fmt.Errorf("parsing headers: %w", err)
	}

	opts := []client.Option{
		client.WithBasePath(v.GetString("base-path")),
		client.WithToken(v.GetString("token")),
		client.WithHeaders(headers),
		client.WithTimeout(v.GetDuration("timeout")),
		client.WithUserAgent(v.GetString("user-agent")),
	}

	if rps := v.GetInt("rps"); rps > 0 {
		opts = append(opts, client.WithThrottle(rps, 1))
	}

	level := slog.LevelWarn
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	opts = append(opts, client.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))))

	return simplesdk.NewClient(opts...)
}

func checkOutput(format string) error {
	switch format {
	case OutputFormatJSON, OutputFormatYAML, OutputFormatTable:
		return nil
	}
	return fmt.Errorf("%w, got %q", ErrInvalidOutput, format)
}

// keyValues parses key=value pairs. Later keys win.
func keyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKeyValue, p)
		}
		out[strings.TrimSpace(k)] = val
	}

	return out, nil
}
