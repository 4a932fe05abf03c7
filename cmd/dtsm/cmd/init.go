package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/dtsm/pkg/dtsm"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty dtsm.json lock file",
	Long: `Creates a dtsm.json lock file listing the configured repositories and no
dependencies. Installed files go to the "typings" directory next to it.

Use --force to overwrite an existing lock file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		content, err := m.Init(cmd.Context(), dtsm.InitOptions{Force: initForce})
		if err != nil {
			return err
		}

		success("Created %s", m.LockPath())
		detail("%s", content)
		info("")
		info("Next steps:")
		info("  1. Run 'dtsm search <phrase>' to find declaration files")
		info("  2. Run 'dtsm install --save <file>' to install and record them")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing lock file")
	rootCmd.AddCommand(initCmd)
}
