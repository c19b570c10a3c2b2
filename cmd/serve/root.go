package serve

import (
	"context"
	cmdUtil "github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a dRPC node",
		Long:    `Start a dRPC node with the specified configuration. The node serves its objects on the endpoint its id maps to in the node directory. The configuration can be set via command line flags, a config file or environment variables. The format of the environment variables is DRPC_<flag> (e.g. DRPC_NODE_ID=1)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupPluginFlags(ServeCmd)

	key := "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the http endpoint serving /metrics and /debug/pprof (e.g. 127.0.0.1:9100, empty = disabled)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	config, err := cmdUtil.GetServerConfig()
	if err != nil {
		return err
	}

	if len(config.EtcdEndpoints) == 0 {
		if _, ok := config.Nodes[config.Plugin.NodeID]; !ok {
			return errors.Errorf("no endpoint configured for node %d (use --nodes or a config file)", config.Plugin.NodeID)
		}
	}

	*serveCmdConfig = *config
	return nil
}

// run starts the node and blocks until it is interrupted
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel, serveCmdConfig.LogFile); err != nil {
		return err
	}

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	ctx := context.Background()

	dir, release, err := server.OpenDirectory(ctx, *serveCmdConfig)
	if err != nil {
		return err
	}
	defer release()

	serv := server.NewRPCServer(
		*serveCmdConfig,
		dir,
		s,
	)

	return serv.Serve(ctx)
}
