package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

// SetVersionInfo sets the version information for the CLI.
// Called from main.go with values injected at build time.
func SetVersionInfo(v, c, d, b string) {
	version = v
	commit = c
	date = d
	builtBy = b
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Display the version, commit hash, build date, and other build information.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			verbose, _ := cmd.Flags().GetBool("verbose")

			if verbose {
				fmt.Fprintf(out, "taxi-relay %s\n", version)
				fmt.Fprintf(out, "  Commit:     %s\n", commit)
				fmt.Fprintf(out, "  Built:      %s\n", date)
				fmt.Fprintf(out, "  Built by:   %s\n", builtBy)
				fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			} else {
				fmt.Fprintf(out, "taxirelay version %s\n", version)
			}
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "Show verbose version information")
	return cmd
}
