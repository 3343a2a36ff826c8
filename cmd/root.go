package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/stcp/cmd/echo"
	"github.com/ValentinKolb/stcp/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "stcp",
		Short: "exact-byte TCP connection substrate",
		Long: fmt.Sprintf(`stcp (v%s)

A low-level TCP transport primitive with exact-count blocking sends and
receives, deadline-bounded I/O, independent liveness monitoring, optional
TLS upgrade and server-side admission control.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of stcp",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stcp v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(echo.EchoCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
