package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/blang/semver"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/cli"
	"github.com/autobrr/go-bitrate/internal/config"
	"github.com/autobrr/go-bitrate/internal/logging"
	"github.com/autobrr/go-bitrate/internal/runner"
	"github.com/autobrr/go-bitrate/internal/server"
)

var version = "dev"

const helpBanner = "" +
	"██████╗ ██╗████████╗██████╗  █████╗ ████████╗███████╗\n" +
	"██╔══██╗██║╚══██╔══╝██╔══██╗██╔══██╗╚══██╔══╝██╔════╝\n" +
	"██████╔╝██║   ██║   ██████╔╝███████║   ██║   █████╗  \n" +
	"██╔══██╗██║   ██║   ██╔══██╗██╔══██║   ██║   ██╔══╝  \n" +
	"██████╔╝██║   ██║   ██║  ██║██║  ██║   ██║   ███████╗\n" +
	"╚═════╝ ╚═╝   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚══════╝"

const helpTemplate = helpBanner + `

{{with or .Long .Short}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{.UsageString}}{{end}}`

var configPath string

var rootCmd = &cobra.Command{
	Use:           "bitrate [flags] <file|dir> [file...]",
	Short:         "Per-frame and windowed bitrate analysis for video files.",
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		program := cli.ProgramName(os.Args[0])
		if code := cli.Run(cmd.Context(), program, cfg, args, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
			return exitCodeError{code: code}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print go-bitrate version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cli.Version(cmd.OutOrStdout())
		return nil
	},
	DisableFlagsInUseLine: true,
}

var outputHelpCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported output formats",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cli.HelpOutput(cli.ProgramName(os.Args[0]), cmd.OutOrStdout())
		return nil
	},
	DisableFlagsInUseLine: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		prober, closeProber, err := cli.NewProber(cfg)
		if err != nil {
			return err
		}
		defer closeProber()

		opts := cfg.Analysis.Options()
		srv := server.New(cfg.Server, runner.New(prober, opts, cfg.Jobs), opts)
		return srv.ListenAndServe(cmd.Context())
	},
}

func init() {
	cli.SetVersion(resolveVersion())

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.SetHelpTemplate(helpTemplate)

	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&configPath, "config", "", "config file (default: search ., $XDG_CONFIG_HOME/bitrate, /etc/bitrate)")
	persistent.String("log-level", "warn", "log level: trace, debug, info, warn, error, disabled")
	persistent.String("log-format", "console", "log format: console or json")
	persistent.Float64("window", analysis.DefaultWindowLength, "window length in seconds")
	persistent.Float64("step", 0, "window step in seconds (default: window length)")
	persistent.Int("max-samples", analysis.DefaultMaxSamples, "retained per-frame samples before decimation (negative disables)")
	persistent.Float64("frame-rate", 0, "frame rate used for the last frame's duration (default: from the stream)")
	persistent.Float64("fallback-duration", 0, "explicit duration in seconds for a frame whose duration cannot be derived")
	persistent.String("backend", "auto", "frame extractor: auto, ffprobe or mp4")
	persistent.String("ffprobe", "ffprobe", "path to the ffprobe binary")
	persistent.Duration("timeout", 0, "per-file probe timeout (default from config)")
	persistent.Bool("cache", false, "cache extracted frames between runs")
	persistent.String("cache-dir", "", "probe cache directory")
	persistent.IntP("jobs", "j", 2, "files analysed in parallel")

	flags := rootCmd.Flags()
	flags.StringP("output", "o", "text", "output format: text, json, csv, svg")
	flags.String("logfile", "", "also write the output to this file")
	flags.Bool("frames", false, "include the per-frame series in JSON output")

	serveFlags := serveCmd.Flags()
	serveFlags.String("addr", "127.0.0.1:8085", "listen address")
	serveFlags.String("root", "", "restrict requested paths to this directory (empty allows any readable path)")

	rootCmd.AddCommand(versionCmd, outputHelpCmd, serveCmd)
}

func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return config.Config{}, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code := exitCode(err)
		var reported exitCodeError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		stop()
		os.Exit(code)
	}
}

// exitCodeError is returned once a failure has already been written to
// stderr; only its exit code is left to apply.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var reported exitCodeError
	if errors.As(err, &reported) && reported.code != 0 {
		return reported.code
	}
	return 1
}

func resolveVersion() string {
	if version != "" && version != "dev" {
		return normalizeVersion(version)
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return normalizeVersion(info.Main.Version)
		}
	}
	return "dev"
}

// normalizeVersion strips the leading "v" and, for parseable versions,
// returns the canonical semver form.
func normalizeVersion(value string) string {
	trimmed := strings.TrimPrefix(value, "v")
	if parsed, err := semver.ParseTolerant(trimmed); err == nil {
		return parsed.String()
	}
	return trimmed
}
