package repository

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const notifyPrefix = "/hearthbutler/dualwrite/config/"

type EtcdInterface interface {
	clientv3.KV
	clientv3.Watcher
	Close() error
}

// ConfigNotifyRepository fans flag changes out across instances: the
// writing instance publishes the fresh row, every instance watches the
// prefix and refreshes its local cache without waiting for the TTL.
type ConfigNotifyRepository struct {
	client EtcdInterface
}

func NewConfigNotifyRepository(client EtcdInterface) *ConfigNotifyRepository {
	return &ConfigNotifyRepository{client: client}
}

func NotifyKey(key string) string {
	return fmt.Sprintf("%s%s", notifyPrefix, key)
}

// Publish puts the serialized config under the notify prefix. The MySQL
// upsert is the serialization point; this is distribution only, so a
// plain put suffices.
func (r *ConfigNotifyRepository) Publish(ctx context.Context, key, payload string) error {
	_, err := r.client.Put(ctx, NotifyKey(key), payload)
	return err
}

// Watch streams config publications from all instances.
func (r *ConfigNotifyRepository) Watch(ctx context.Context) clientv3.WatchChan {
	return r.client.Watch(ctx, notifyPrefix, clientv3.WithPrefix())
}

func (r *ConfigNotifyRepository) Health(ctx context.Context) error {
	_, err := r.client.Get(ctx, notifyPrefix+"health_check")
	return err
}
