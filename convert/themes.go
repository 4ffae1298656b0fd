package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	cli "github.com/urfave/cli/v3"

	"mdeck/state"
	"mdeck/theme"
)

// ListThemes prints themes available to decks with their slide sizes.
func ListThemes(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	if err := env.LoadThemes(); err != nil {
		return fmt.Errorf("unable to load themes: %w", err)
	}
	return listThemes(os.Stdout, env.Themes)
}

func listThemes(w io.Writer, set *theme.Set) error {
	var def string
	if t := set.Default(); t != nil {
		def = t.Name()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\t")
	for _, name := range set.Names() {
		width, height := set.PixelSize(name)
		mark := ""
		if name == def {
			mark = "(default)"
		}
		fmt.Fprintf(tw, "%s\t%gx%g\t%s\n", name, width, height, mark)
	}
	return tw.Flush()
}
