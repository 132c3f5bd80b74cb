package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/types/common"
)

var (
	logsName        string
	logsMessage     string
	logsDescription string
	logsSeverity    string
	logsEnvironment string
	logsFields      []string
)

// newLogsCmd creates the logs command group.
func newLogsCmd() *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Emit to and manage the structured event stream",
	}

	emitCmd := &cobra.Command{
		Use:   "emit",
		Short: "Emit one structured event to the configured engine",
		Args:  cobra.NoArgs,
		RunE:  runLogsEmit,
	}
	emitCmd.Flags().StringVar(&logsName, "name", "", "event name, e.g. deploy_finished (required)")
	emitCmd.Flags().StringVar(&logsMessage, "message", "", "human-readable summary (required)")
	emitCmd.Flags().StringVar(&logsDescription, "description", "", "optional long-form context")
	emitCmd.Flags().StringVar(&logsSeverity, "severity", "INFO", "event severity (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	emitCmd.Flags().StringVar(&logsEnvironment, "environment", "", "override the configured environment tier")
	emitCmd.Flags().StringArrayVar(&logsFields, "field", nil, "extra payload field as key=value (repeatable)")
	_ = emitCmd.MarkFlagRequired("name")
	_ = emitCmd.MarkFlagRequired("message")

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete the application's event stream from the backend",
		Long: "Delete the stored history of the configured event stream. Engines\n" +
			"without deletable history (the local console) report the refusal and\n" +
			"exit clean.",
		Args: cobra.NoArgs,
		RunE: runLogsPurge,
	}

	logsCmd.AddCommand(emitCmd, purgeCmd)
	return logsCmd
}

func runLogsEmit(cmd *cobra.Command, _ []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	severity, err := common.ParseSeverity(logsSeverity)
	if err != nil {
		return err
	}

	var environment common.Environment
	if logsEnvironment != "" {
		environment, err = common.ParseEnvironment(logsEnvironment)
		if err != nil {
			return err
		}
	}

	fields, err := parseFields(logsFields)
	if err != nil {
		return err
	}

	ctx, cancel := cliCtx.opCtx(cmd)
	defer cancel()

	ev := eventlog.Event{
		Name:        logsName,
		Message:     logsMessage,
		Description: logsDescription,
		Severity:    severity,
		Environment: environment,
		Fields:      fields,
	}
	if err := cliCtx.Recorder.Log(ctx, ev); err != nil {
		return err
	}

	PrintSuccess(cmd, fmt.Sprintf("event %s delivered to the %s engine", logsName, cliCtx.Config.Events.Engine))
	return nil
}

func runLogsPurge(cmd *cobra.Command, _ []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := cliCtx.opCtx(cmd)
	defer cancel()

	if err := cliCtx.Recorder.PurgeStream(ctx); err != nil {
		if errors.IsCode(err, errors.CodePurgeUnsupported) {
			PrintSkipped(cmd, fmt.Sprintf("the %s engine keeps no deletable history", cliCtx.Config.Events.Engine))
			return nil
		}
		return err
	}

	PrintSuccess(cmd, fmt.Sprintf("event stream %s purged", cliCtx.Recorder.LoggerName()))
	return nil
}
