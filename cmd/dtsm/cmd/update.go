package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/dtsm/pkg/dtsm"
)

var updateDryRun bool

var updateCmd = &cobra.Command{
	Use:   "update [target...]",
	Short: "Update installed files to the latest repository state",
	Long: `Fetches every repository, re-resolves the selected lock entries and
installs their new closure. A file's recorded commit only changes when its
content did. Targets match entries by exact path, first path segment or
glob; without targets every entry is updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		res, err := m.Update(cmd.Context(), dtsm.UpdateOptions{Targets: args, DryRun: updateDryRun})
		if res != nil && len(res.DependenciesList) == 0 {
			info("Nothing to update.")
			return err
		}
		printUpdateResult(res)
		if err == nil && !updateDryRun {
			info("")
			info("Lockfile updated.")
		}
		return err
	},
}

func printUpdateResult(res *dtsm.InstallResult) {
	if res == nil {
		return
	}
	if updateDryRun {
		info("Dry run: lockfile not modified.")
	}
	for _, d := range res.DependenciesList {
		if d.Err != nil {
			failure("%s: %v", d.Path, d.Err)
			continue
		}
		success("%s %s", d.Path, styleDim.Render(iconArrow+" "+shortRef(d.Ref)))
	}
}

func init() {
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false, "show what would change without writing files or the lock file")
	rootCmd.AddCommand(updateCmd)
}
