package cmd

import (
	"os"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bianoble/dtsm/pkg/dtsm"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Bring every repository mirror up to date",
	Long: `Clones missing repository mirrors into the cache and fetches new commits
into existing ones. Repositories are synced in parallel; a repository that
fails does not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var bar *progressbar.ProgressBar
		m, err := newManager(func(o *dtsm.Options) {
			o.OnSynced = func(url string, err error) {
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		})
		if err != nil {
			return err
		}

		bar = progressbar.NewOptions(len(m.Repos()),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("fetching"),
			progressbar.OptionSetVisibility(!quiet),
			progressbar.OptionClearOnFinish(),
		)
		report, err := m.Fetch(cmd.Context())
		_ = bar.Finish()

		if report != nil {
			for _, url := range report.Synced {
				success("%s", url)
			}
			failed := make([]string, 0, len(report.Failed))
			for url := range report.Failed {
				failed = append(failed, url)
			}
			sort.Strings(failed)
			for _, url := range failed {
				failure("%s", url)
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
