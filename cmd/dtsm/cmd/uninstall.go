package cmd

import (
	"github.com/spf13/cobra"

	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/pkg/dtsm"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall name...",
	Short: "Remove installed files and their lock entries",
	Long: `Removes the lock entries selected by each name together with their
installed files. A name matches an entry by exact path, first path segment
or glob. Files the removed entries depend on are kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		results, err := m.Uninstall(cmd.Context(), dtsm.UninstallOptions{}, args)
		for _, r := range results {
			if r.Err != nil {
				failure("%s: %s", r.Path, dterrors.UserMessage(r.Err))
			} else if r.Removed {
				success("removed %s", r.Path)
			} else {
				success("removed %s %s", r.Path, styleDim.Render("(file was already gone)"))
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
