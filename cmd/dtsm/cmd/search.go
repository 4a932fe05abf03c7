package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchRaw bool

var searchCmd = &cobra.Command{
	Use:   "search [phrase]",
	Short: "Find declaration files whose path contains a phrase",
	Long: `Lists every declaration file whose repository path contains the phrase.
Matching is case-sensitive; without a phrase every file is listed.

Use --raw to print bare paths, one per line, suitable for 'dtsm install --stdin'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var phrase string
		if len(args) == 1 {
			phrase = args[0]
		}

		m, err := newManager()
		if err != nil {
			return err
		}
		results, err := m.Search(cmd.Context(), phrase)
		if err != nil {
			return err
		}

		if searchRaw {
			for _, r := range results {
				fmt.Println(r.Path)
			}
			return nil
		}

		if len(results) == 0 {
			info("No files match %q.", phrase)
			return nil
		}
		for _, r := range results {
			fmt.Println(styleValue.Render(r.Path))
			detail("%s @ %s", r.Repo.URL, shortRef(r.Ref))
		}
		info("")
		info("%d file(s) found.", len(results))
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchRaw, "raw", false, "print bare paths only")
	rootCmd.AddCommand(searchCmd)
}
