package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bianoble/dtsm/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show dtsm configuration and cache information",
	Long: `Displays the dtsm version, the lock file path, the repositories in
resolution order, the config file chain, and the cache directory and size.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		fmt.Println(styleTitle.Render("dtsm " + version))
		printKeyValue("lockfile", m.LockPath())
		printKeyValue("offline", strconv.FormatBool(m.Offline()))
		if optout := m.InsightOptout(); optout != nil {
			printKeyValue("insight", strconv.FormatBool(!*optout))
		}
		printKeyValue("cache dir", m.CacheDir())
		size, err := m.CacheSize()
		if err != nil {
			logger.Warn("measuring cache", "err", err)
		}
		printKeyValue("cache size", humanSize(size))

		fmt.Println()
		fmt.Println(styleTitle.Render("Repositories"))
		for _, r := range m.Repos() {
			fmt.Printf("  %s\n", styleValue.Render(r.URL))
			detail("%s", r.LocalPath)
		}

		if config.EnvNoInherit() {
			return nil
		}
		// A broken layer would already have failed newManager.
		hr, _ := config.LoadHierarchical(config.DiscoverOptions{})
		fmt.Println()
		fmt.Println(styleTitle.Render("Config chain"))
		for _, layer := range hr.Layers {
			status := "not found"
			if layer.Loaded {
				status = "loaded"
			}
			fmt.Printf("  %-8s %s (%s)\n", layer.Level+":", layer.Path, status)
		}
		return nil
	},
}

func printKeyValue(key, value string) {
	fmt.Println("  " + styleKey.Render(key) + " " + styleValue.Render(value))
}

func humanSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
