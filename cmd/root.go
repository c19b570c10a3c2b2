package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/cmd/call"
	"github.com/ValentinKolb/dRPC/cmd/serve"
	"github.com/spf13/cobra"
	"os"
	"runtime"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "drpc",
		Short: "distributed object invocation",
		Long: fmt.Sprintf(`dRPC (v%s)

A transport for invoking methods on objects that live on other nodes,
written in Go. Calls are shipped as length-prefixed binary frames over
persistent TCP connections and completed asynchronously.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dRPC",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dRPC v%s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(call.CallCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
