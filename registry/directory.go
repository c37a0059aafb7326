// This file repurposes the teacher's etcd-backed service registry
// (originally a routing-table of addresses clients discovered and load
// balanced across) into a diagnostics-only liveness heartbeat: a Registry
// that opts in publishes "this channel is being listened on" to etcd with a
// TTL lease, but nothing here ever feeds back into call dispatch. A channel
// name still uniquely identifies one server (spec.md's "no multi-server
// discovery" non-goal is untouched) — EtcdDirectory only gives external
// tooling (a dashboard, an ops script) something to watch.
package registry

import (
	"context"
	"encoding/json"
	"os"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const directoryKeyPrefix = "/ipc-shm/channels/"

// ChannelStatus is the JSON value published for a live channel.
type ChannelStatus struct {
	Channel     string    `json:"channel"`
	PID         int       `json:"pid"`
	ListenSince time.Time `json:"listen_since"`
}

// EtcdDirectory publishes channel liveness to etcd with a TTL-backed lease,
// the same Grant/Put/KeepAlive sequence the teacher's EtcdRegistry used for
// service instances, now carrying a single diagnostics record instead of a
// routable address.
type EtcdDirectory struct {
	client *clientv3.Client
	cancel context.CancelFunc
}

// NewEtcdDirectory connects to the given etcd endpoints.
func NewEtcdDirectory(endpoints []string) (*EtcdDirectory, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdDirectory{client: c}, nil
}

// Publish writes the channel's status under a TTL lease and starts a
// background keep-alive. Unlike the teacher's Register, there is no
// corresponding Discover/Watch here — nothing reads this key to find a
// server to call.
func (d *EtcdDirectory) Publish(channel string, ttl int64) error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	lease, err := d.client.Grant(ctx, ttl)
	if err != nil {
		cancel()
		return err
	}

	status := ChannelStatus{Channel: channel, PID: os.Getpid(), ListenSince: time.Now()}
	val, err := json.Marshal(status)
	if err != nil {
		cancel()
		return err
	}

	if _, err := d.client.Put(ctx, directoryKeyPrefix+channel, string(val), clientv3.WithLease(lease.ID)); err != nil {
		cancel()
		return err
	}

	ch, err := d.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		cancel()
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Close stops the keep-alive and closes the etcd client. It does not delete
// the published key — the lease's TTL expiry is what retires it, the same
// crash-safety property the teacher relied on for vanishing instances.
func (d *EtcdDirectory) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	return d.client.Close()
}
