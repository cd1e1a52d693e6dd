// Command bumpctl is the operator CLI for bumpwatch-server: list and
// inspect speed bumps, update their condition, watch the list live, export
// snapshots and seed a record store.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/client"
)

const appName = "bumpctl"

func main() {
	if err := rootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliConfig is resolved from flags, BUMPCTL_* environment variables and
// an optional YAML file, in that order of precedence.
type cliConfig struct {
	Server   string        `mapstructure:"server"`
	APIKey   string        `mapstructure:"api-key"`
	Header   string        `mapstructure:"header"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Output   string        `mapstructure:"output"`
	LogLevel string        `mapstructure:"log-level"`
}

// app carries what every subcommand needs.
type app struct {
	v      *viper.Viper
	cfg    cliConfig
	stdout io.Writer
	stderr io.Writer
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.Server,
		client.WithAPIKey(a.cfg.Header, a.cfg.APIKey),
		client.WithTimeout(a.cfg.Timeout),
	)
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	var configFile string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Speed bump maintenance from the command line",
		Long: `bumpctl talks to a bumpwatch-server over its REST API.

Settings come from flags, BUMPCTL_* environment variables (BUMPCTL_SERVER,
BUMPCTL_API_KEY, ...) or ~/.bumpctl.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.Root().PersistentFlags(), configFile)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default is $HOME/.bumpctl.yaml)")
	pf.String("server", "http://localhost:8080", "bumpwatch-server base URL")
	pf.String("api-key", "", "API key for writes")
	pf.String("header", client.DefaultHeader, "header the API key is sent in")
	pf.Duration("timeout", 10*time.Second, "per-request timeout")
	pf.StringP("output", "o", "table", "output format (table, json)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		listCmd(a),
		getCmd(a),
		updateCmd(a),
		summaryCmd(a),
		previewCmd(a),
		watchCmd(a),
		exportCmd(a),
		seedCmd(a),
	)
	return cmd
}

// load resolves cliConfig and sets up logging.
func (a *app) load(fs *pflag.FlagSet, configFile string) error {
	v := a.v
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	v.SetEnvPrefix("BUMPCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName("." + appName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	err := v.Unmarshal(&a.cfg, viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			dc.DecodeHook,
		)
	}))
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	switch a.cfg.Output {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q (want table or json)", a.cfg.Output)
	}

	level := slog.LevelWarn
	switch strings.ToLower(a.cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level})))
	slog.Debug("config resolved", "server", a.cfg.Server, "file", v.ConfigFileUsed())
	return nil
}

// filterFlag registers --filter on fs.
func filterFlag(fs *pflag.FlagSet, f *bump.Filter) {
	*f = bump.FilterAll
	fs.VarP(f, "filter", "f", "all, damaged or critical")
}
