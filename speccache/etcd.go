package speccache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kadirpekel/hector-pml/workflow"
)

// EtcdCache is a workflow.SpeculationCacheBackend backed by etcd,
// suitable for a multi-instance deployment where the speculation cache
// must be shared rather than per-process. TTL is implemented with an
// etcd lease rather than a stored expiry field, so an expired entry is
// removed by etcd itself without requiring a sweep.
type EtcdCache struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdCache returns a cache backed by an etcd cluster at endpoints.
func NewEtcdCache(endpoints []string, prefix string) (*EtcdCache, error) {
	cli, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, fmt.Errorf("[speccache:NewEtcdCache] connecting to etcd: %w", err)
	}
	return &EtcdCache{client: cli, prefix: prefix}, nil
}

func (c *EtcdCache) key(fingerprint string) string {
	return c.prefix + "/" + fingerprint
}

func (c *EtcdCache) Get(ctx context.Context, fingerprint string) (workflow.TaskResult, bool, error) {
	resp, err := c.client.Get(ctx, c.key(fingerprint))
	if err != nil {
		return workflow.TaskResult{}, false, fmt.Errorf("[speccache:EtcdCache.Get] %w", err)
	}
	if len(resp.Kvs) == 0 {
		return workflow.TaskResult{}, false, nil
	}
	var result workflow.TaskResult
	if err := json.Unmarshal(resp.Kvs[0].Value, &result); err != nil {
		return workflow.TaskResult{}, false, fmt.Errorf("[speccache:EtcdCache.Get] decoding entry: %w", err)
	}
	return result, true, nil
}

func (c *EtcdCache) Put(ctx context.Context, fingerprint string, result workflow.TaskResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("[speccache:EtcdCache.Put] encoding entry: %w", err)
	}

	lease, err := c.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("[speccache:EtcdCache.Put] granting lease: %w", err)
	}
	if _, err := c.client.Put(ctx, c.key(fingerprint), string(data), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("[speccache:EtcdCache.Put] %w", err)
	}
	return nil
}

func (c *EtcdCache) Evict(ctx context.Context, fingerprint string) error {
	if _, err := c.client.Delete(ctx, c.key(fingerprint)); err != nil {
		return fmt.Errorf("[speccache:EtcdCache.Evict] %w", err)
	}
	return nil
}
