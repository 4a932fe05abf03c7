package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bianoble/dtsm/pkg/dtsm"
)

var (
	installSave   bool
	installDryRun bool
	installStdin  bool
)

var installCmd = &cobra.Command{
	Use:   "install [file...]",
	Short: "Install declaration files and everything they reference",
	Long: `Resolves each argument to exactly one declaration file, follows its
/// <reference path="..."/> directives and installs the whole set into the
directory named by the lock file ("typings" by default).

Without arguments, installs exactly what dtsm.json records, at the pinned
commits. With --stdin, reads one file per line and installs them one after
another. Use --save to record installed files in dtsm.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var bar *progressbar.ProgressBar
		m, err := newManager(func(o *dtsm.Options) {
			o.OnInstalled = func(*dtsm.DependencyResult) {
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		})
		if err != nil {
			return err
		}
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("installing"),
			progressbar.OptionSetVisibility(!quiet && !installDryRun),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()

		ctx := cmd.Context()
		switch {
		case installStdin:
			return installLines(ctx, m, cmd.InOrStdin())
		case len(args) == 0:
			res, err := m.InstallFromFile(ctx, dtsm.InstallFromFileOptions{DryRun: installDryRun})
			_ = bar.Finish()
			printInstallResult(res)
			return err
		default:
			res, err := m.Install(ctx, dtsm.InstallOptions{Save: installSave, DryRun: installDryRun}, args)
			_ = bar.Finish()
			printInstallResult(res)
			return err
		}
	},
}

// installLines installs each non-empty line of r as its own install, strictly
// in order. The first failure stops the run.
func installLines(ctx context.Context, m *dtsm.Manager, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		res, err := m.Install(ctx, dtsm.InstallOptions{Save: installSave, DryRun: installDryRun}, []string{line})
		printInstallResult(res)
		if err != nil {
			return fmt.Errorf("installing %s: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

func printInstallResult(res *dtsm.InstallResult) {
	if res == nil {
		return
	}
	if installDryRun {
		info("Dry run: no files written.")
	}
	for _, d := range res.DependenciesList {
		if d.Err != nil {
			failure("%s: %v", d.Path, d.Err)
			continue
		}
		success("%s %s", d.Path, styleDim.Render(iconArrow+" "+shortRef(d.Ref)))
		detail("%s", d.Repo.URL)
	}
}

func init() {
	installCmd.Flags().BoolVar(&installSave, "save", false, "record installed files in the lock file")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "show what would be installed without writing files")
	installCmd.Flags().BoolVar(&installStdin, "stdin", false, "read files to install from stdin, one per line")
	rootCmd.AddCommand(installCmd)
}
