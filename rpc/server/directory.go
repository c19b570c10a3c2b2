package server

import (
	"context"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/directory"
)

// OpenDirectory builds the node directory described by config. With etcd endpoints the local
// node's entry from config.Nodes is published first and a snapshot of all nodes is loaded,
// otherwise config.Nodes is used as is. The returned function releases the directory.
func OpenDirectory(ctx context.Context, config common.ServerConfig) (directory.INodeDirectory, func(), error) {
	if len(config.EtcdEndpoints) == 0 {
		dir, err := directory.NewStaticDirectory(config.Nodes)
		if err != nil {
			return nil, nil, err
		}
		return dir, func() {}, nil
	}

	dir, err := directory.NewEtcdDirectory(directory.EtcdConfig{
		Endpoints: config.EtcdEndpoints,
		Prefix:    config.EtcdPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := dir.Close(); err != nil {
			Logger.Warningf("failed to close etcd directory: %v", err)
		}
	}

	if uri, ok := config.Nodes[config.Plugin.NodeID]; ok {
		if err := dir.Publish(ctx, config.Plugin.NodeID, uri); err != nil {
			release()
			return nil, nil, err
		}
	}

	if err := dir.Load(ctx); err != nil {
		release()
		return nil, nil, err
	}
	return dir, release, nil
}
