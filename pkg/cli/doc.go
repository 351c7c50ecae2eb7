/*
Package cli provides command-line helpers shared by the mixer command.

Output Formatting:

Command results can be printed as text, JSON or YAML:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Values implementing Texter control their own text rendering.

Errors and Exit Codes:

Commands return *ConfigError for unusable configuration and *CommandError
for failures while running; ExitCode maps an error to the process exit code.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
