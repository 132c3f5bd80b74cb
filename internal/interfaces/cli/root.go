// Package cli implements the evoinfra command line interface: a thin
// operational front over the storage, database and logging facades. The root
// command loads configuration, builds the logger and the event pipeline, and
// hands an initialized CLIContext to every subcommand.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/evolvehq/evoinfra/internal/config"
	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/eventlog/gcl"
	"github.com/evolvehq/evoinfra/pkg/eventlog/pgarchive"
	"github.com/evolvehq/evoinfra/pkg/logging"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// active is the CLIContext built by the last persistentPreRun. Execute
// closes it after the command tree finishes, error or not.
var active *CLIContext

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Sinks        *eventlog.Registry
	Recorder     *eventlog.Recorder
	OutputFormat string
	Timeout      time.Duration
	Verbose      bool

	closeSink func() error
}

// Close releases the event sink. Safe to call more than once.
func (c *CLIContext) Close() error {
	if c == nil || c.closeSink == nil {
		return nil
	}
	fn := c.closeSink
	c.closeSink = nil
	return fn()
}

// opCtx derives the per-operation context from the command, bounded by the
// global --timeout flag.
func (c *CLIContext) opCtx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

// NewRootCommand creates the root cobra command with all global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "evoinfra",
		Short: "evoinfra CLI — cloud storage, event logging and MongoDB administration",
		Long: "evoinfra is the operational front for the Evolve infrastructure facades.\n" +
			"It creates buckets, moves artifacts, administers MongoDB collections and\n" +
			"their schemas, and manages the structured event stream the facades emit to.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./evoinfra.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "global operation timeout")

	cmd.AddCommand(
		newBucketCmd(),
		newArtifactCmd(),
		newCollectionCmd(),
		newLogsCmd(),
	)

	return cmd
}

// persistentPreRun initializes config, logger, sink and recorder, then
// stores the CLIContext on the command's context.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	color.NoColor = color.NoColor || opts.NoColor

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	sink, err := buildSink(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("event sink initialization failed: %w", err)
	}

	sinks := eventlog.NewRegistry()
	if err := sinks.Register(cfg.Events.Engine, sink); err != nil {
		_ = sink.Close()
		return err
	}

	rec, err := eventlog.NewRecorder(eventlog.RecorderConfig{
		LoggerName:  cfg.Identity.LoggerName,
		AppName:     cfg.Identity.AppName,
		Environment: cfg.Env(),
	}, sink, logger)
	if err != nil {
		_ = sink.Close()
		return fmt.Errorf("recorder initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		Sinks:        sinks,
		Recorder:     rec,
		OutputFormat: opts.OutputFormat,
		Timeout:      opts.Timeout,
		Verbose:      opts.Verbose,
		closeSink:    sink.Close,
	}
	active = cliCtx

	ctx := context.WithValue(cmd.Context(), cliContextKey{}, cliCtx)
	cmd.SetContext(ctx)

	return nil
}

// initConfig loads configuration with priority: flag > search paths > env.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./evoinfra.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".evoinfra", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/evoinfra/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return config.Load(p)
		}
	}

	// No config file found; environment variables and defaults carry a
	// complete local-engine deployment.
	return config.LoadFromEnv()
}

// initLogger creates a logger configured for CLI usage: console format on
// stderr so that stdout stays clean for command output.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Log.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}

	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// buildSink constructs the sink selected by events.engine. Only the
// configured backend is dialed.
func buildSink(ctx context.Context, cfg *config.Config, log logging.Logger) (eventlog.Sink, error) {
	switch cfg.Events.Engine {
	case eventlog.EngineLocal:
		min, err := common.ParseSeverity(cfg.Events.MinSeverity)
		if err != nil {
			return nil, err
		}
		return eventlog.NewLocalSink(log, min)
	case eventlog.EngineCloud:
		return gcl.NewCloudSink(ctx, cfg.Events.Cloud, log)
	case eventlog.EngineArchive:
		return pgarchive.NewArchiveSink(ctx, cfg.Events.Archive, log)
	default:
		return nil, errors.New(errors.CodeEngineUnknown, "no sink available for engine").
			WithDetail("engine=" + cfg.Events.Engine)
	}
}

// GetCLIContext extracts the CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.ValidationFailure("command context is nil")
	}

	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.ValidationFailure("CLI context not initialized")
	}

	return cliCtx, nil
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()

	if active != nil {
		if cerr := active.Close(); cerr != nil {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "Warning: event sink close failed: %v\n", cerr)
		}
		active = nil
	}

	if err != nil {
		PrintError(rootCmd, err)
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

// tableProvider is implemented by result types that can render as a table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult outputs data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return printJSON(cmd, data)
	}

	switch strings.ToLower(cliCtx.OutputFormat) {
	case "json":
		return printJSON(cmd, data)
	case "table":
		return printTable(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		if tp, ok := data.(tableProvider); ok {
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

func printTable(cmd *cobra.Command, data interface{}) error {
	if tp, ok := data.(tableProvider); ok {
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(tp.TableHeaders(), tp.TableRows()))
		return nil
	}
	return printText(cmd, data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}

// PrintSkipped reports an operation the backend refused without failing,
// such as creating a bucket that already exists. The command still exits
// zero; the condition is recorded on the event stream.
func PrintSkipped(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.YellowString("Skipped:"), msg)
}

// FormatTable renders headers and rows as an aligned text table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
	return sb.String()
}

// parseFields turns repeated key=value flag values into an event field bag.
func parseFields(kvs []string) (eventlog.Fields, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	fields := make(eventlog.Fields, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, errors.ValidationFailure("field must be key=value").WithDetail(kv)
		}
		fields[k] = v
	}
	return fields, nil
}
