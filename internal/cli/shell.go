package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// NewShellCommand creates the shell command.
func NewShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands from stdin against one live session",
		Long: `Read commands from stdin, one per line, against a single session. The
compare set and recently viewed list only live as long as the process, so
they are available here and not as subcommands.

Example:
  printf 'view 42\ncompare add 42\ncompare add 7\ncompare submit\n' | shopctl shell --catalog catalog.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts)
		},
	}
}

func runShell(cmd *cobra.Command, opts *RootOptions) error {
	ctx := commandContext(cmd)
	s, err := openShopper(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			s.logger.Error("failed to close profile", slog.String("error", cerr.Error()))
		}
	}()

	failed := 0
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "exit", "quit":
			return shellResult(failed)
		case "help":
			writeShellHelp(cmd.OutOrStdout())
			continue
		}

		a, args, err := matchAction(fields)
		if err == nil {
			err = a.run(ctx, s, args)
		}
		if err != nil {
			failed++
			_ = s.out.Error(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to read commands", err)
	}
	return shellResult(failed)
}

func shellResult(failed int) error {
	if failed > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d command(s) failed", failed), nil)
	}
	return nil
}

// matchAction resolves the longest action name that prefixes fields.
func matchAction(fields []string) (action, []string, error) {
	for n := min(2, len(fields)); n > 0; n-- {
		name := strings.Join(fields[:n], " ")
		for _, a := range actions {
			if a.name != name {
				continue
			}
			args := fields[n:]
			if len(args) != len(a.args) {
				return action{}, nil, apperrors.InvalidInput("usage: " + a.usage())
			}
			return a, args, nil
		}
	}
	return action{}, nil, apperrors.InvalidInput(fmt.Sprintf("unknown command %q; try help", strings.Join(fields, " ")))
}

func writeShellHelp(w io.Writer) {
	for _, a := range actions {
		fmt.Fprintf(w, "  %-36s %s\n", a.usage(), a.short)
	}
	fmt.Fprintf(w, "  %-36s %s\n", "exit", "Leave the shell")
}
