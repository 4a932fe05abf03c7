package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bianoble/dtsm/pkg/dtsm"
)

// newManager builds a Manager from the global flags. mutate adjusts the
// options before construction, typically to attach progress callbacks.
func newManager(mutate ...func(*dtsm.Options)) (*dtsm.Manager, error) {
	optout, err := insightOptout()
	if err != nil {
		return nil, err
	}
	opts := dtsm.Options{
		ConfigPath:    configPath,
		Offline:       offline,
		InsightOptout: optout,
		Logger:        logger,
	}
	if remote != "" {
		opts.Repos = []dtsm.RepositorySpec{{URL: remote}}
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return dtsm.New(opts)
}

// insightOptout maps --insight to the opt-out flag: "true" opts in, "false"
// opts out, and an empty value leaves the choice unset.
func insightOptout() (*bool, error) {
	if insight == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(insight)
	if err != nil {
		return nil, fmt.Errorf("--insight must be true or false, got %q", insight)
	}
	optout := !v
	return &optout, nil
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Println("  " + styleDim.Render(fmt.Sprintf(format, args...)))
	}
}

// success prints a checkmarked line unless quiet mode is active.
func success(format string, args ...any) {
	info("%s %s", styleSuccess.Render(iconSuccess), fmt.Sprintf(format, args...))
}

// failure prints a crossed line to stderr.
func failure(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleError.Render(iconError), fmt.Sprintf(format, args...))
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
