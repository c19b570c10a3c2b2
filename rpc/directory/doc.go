// Package directory resolves node ids to tcp:// endpoints.
//
// A directory is loaded once before the transport plugin starts and treated as read-only
// afterwards. StaticDirectory is built from flags or a config file, EtcdDirectory takes a
// snapshot of the entries stored in etcd and publishes the local node with a TTL lease.
package directory
