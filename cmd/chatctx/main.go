// chatctx shrinks chat transcripts into token-bounded history digests.
//
// Usage:
//
//	chatctx digest transcript.json --max-tokens 1500
//	chatctx repl
//	chatctx stats
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via -ldflags during build
var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:           "chatctx",
		Short:         "Select, compress and format chat history under a token budget",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Config file (default ~/.chatctx/config.yaml)")

	root.AddCommand(
		newDigestCmd(a),
		newReplCmd(a),
		newStatsCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version and exit",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(a.out, "chatctx version %s\n", Version)
			},
		},
	)
	return root
}
