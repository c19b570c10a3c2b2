package call

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/lib/echo"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/plugin"
	"github.com/ValentinKolb/dRPC/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

var (
	rpcEcho    *client.RPCEcho
	rpcPlugin  *plugin.Plugin
	releaseDir func()

	// CallCommands represents the call command group
	CallCommands = &cobra.Command{
		Use:   "call",
		Short: "Invoke the echo service of a remote node",
		Long: `Invoke the echo service published by a node. Without a subcommand the message is echoed.
The local process joins the system as a client-only node unless --node-id has a directory entry.`,
		PersistentPreRunE:  setupEchoClient,
		PersistentPostRunE: teardownEchoClient,
		RunE:               runEcho,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common plugin flags to the call command
	util.SetupPluginFlags(CallCommands)

	CallCommands.PersistentFlags().Uint32("node", 1, util.WrapString("ID of the node to call"))
	CallCommands.Flags().String("message", "hello", util.WrapString("Message to echo"))
	CallCommands.Flags().Bool("oneway", false, util.WrapString("Send the message as one-way notification without waiting for a reply"))

	// Add subcommands
	CallCommands.AddCommand(pingCmd)
	CallCommands.AddCommand(notifyCmd)
	CallCommands.AddCommand(perfTestCmd)
}

// setupEchoClient starts a client plugin and creates the echo proxy for the target node
func setupEchoClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	config, err := util.GetServerConfig()
	if err != nil {
		return err
	}
	if err := common.InitLoggers(config.LogLevel, config.LogFile); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	dir, release, err := server.OpenDirectory(context.Background(), *config)
	if err != nil {
		return err
	}
	releaseDir = release

	registry := binder.NewRegistry()
	server.RegisterInterfaces(registry, s, config.Plugin.TransactionTimeout)

	rpcPlugin = plugin.New(config.Plugin, dir, nil, registry)
	if err := rpcPlugin.Start(); err != nil {
		return err
	}

	target := viper.GetUint32("node")
	remote := rpcPlugin.NewNamedProxy(target, echo.ServiceName, echo.Descriptor)
	rpcEcho, err = binder.ProxyAs[*client.RPCEcho](registry, remote)
	return err
}

// teardownEchoClient stops the plugin, failing whatever is still pending
func teardownEchoClient(_ *cobra.Command, _ []string) error {
	if rpcPlugin != nil {
		rpcPlugin.Stop()
	}
	if releaseDir != nil {
		releaseDir()
	}
	return nil
}

func runEcho(_ *cobra.Command, _ []string) error {
	msg := viper.GetString("message")

	if viper.GetBool("oneway") {
		if err := notify(msg); err != nil {
			return err
		}
		fmt.Println("sent one-way notification")
		return nil
	}

	start := time.Now()
	reply, err := rpcEcho.Echo(msg)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t(%s)\n", reply, time.Since(start))
	return nil
}

// notify sends msg one-way. Frames on a connection are written in order, so the ping
// returns only after the notification left the socket.
func notify(msg string) error {
	if err := rpcEcho.Notify(msg); err != nil {
		return err
	}
	_, err := rpcEcho.Ping()
	return err
}
