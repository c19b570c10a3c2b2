package call

import (
	"fmt"
	"github.com/spf13/cobra"
	"strings"
	"time"
)

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Pings the echo service of the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			reply, err := rpcEcho.Ping()
			if err != nil {
				return err
			}
			fmt.Printf("%s\t(%s)\n", reply, time.Since(start))
			return nil
		},
	}
	notifyCmd = &cobra.Command{
		Use:   "notify [message...]",
		Short: "Sends a one-way notification to the echo service of the node",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := notify(strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Println("notified successfully")
			return nil
		},
	}
)
