package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"mdeck/common"
	"mdeck/convert"
	"mdeck/misc"
	"mdeck/state"
)

const renderHelp = `%s
SOURCE:
    path to deck(s) to process, following formats are supported:
        path to a file: "[path_to_file]deck.md"
        path to a directory: "[path_to_directory]directory" - recursively process all decks and archives under directory (symbolic links are not followed)
        path to archive with path inside archive to a particular deck: "[path_to_archive]archive.zip[path_in_archive]/deck.md"
        path to archive with path inside archive: "[path_to_archive]archive.zip[path_in_archive]" - recursively process all decks under archive path

	Files with .md and .markdown extensions are decks, archives inside
	archives are not processed.

DESTINATION:
    always a path, output file name(s) and extension will be derived from source and configuration
    if absent - current working directory
`

const dumpConfigHelp = `%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values which is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:         "render",
		Usage:        "Renders Markdown deck(s) to HTML document or JSON",
		OnUsageError: onUsageError,
		Action:       convert.Render,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to",
				Usage: "output `TYPE`, overrides configuration (supported types: " + strings.Join(common.OutputFmtNames(), ", ") + ")"},
			&cli.StringFlag{Name: "theme", Aliases: []string{"t"}, Usage: "use theme `NAME` for decks which do not select one"},
			&cli.BoolFlag{Name: "svg", Usage: "wrap every slide into inline SVG (enables advanced backgrounds)"},
			&cli.BoolFlag{Name: "printable", Usage: "add print friendly page rules to generated CSS"},
			&cli.BoolFlag{Name: "html", Usage: "allow raw HTML in decks"},
			&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exits, overwrite files"},
		},
		ArgsUsage:          "SOURCE [DESTINATION]",
		CustomHelpTemplate: fmt.Sprintf(renderHelp, cli.CommandHelpTemplate),
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "compiles Markdown slide decks into HTML and CSS",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          setupEnv,
		After:           teardownEnv,
		OnUsageError:    onUsageError,
		ExitErrHandler:  onExitError,
		CommandNotFound: onCommandNotFound,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			renderCommand(),
			{
				Name:         "themes",
				Usage:        "Lists themes available to decks",
				OnUsageError: onUsageError,
				Action:       convert.ListThemes,
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError:       onUsageError,
				Action:             dumpConfig,
				ArgsUsage:          "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(dumpConfigHelp, cli.CommandHelpTemplate),
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	var err error
	// os.Exit skips deferred calls, this must stay the only deferred function
	defer func() {
		stop()
		if err != nil {
			// log may be not ready yet or already closed
			if !errLogged {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = newApp().Run(ctx, os.Args)
}
