package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore persists checkpoints as single keys under a prefix, one key
// per workflow_id, using a compare-and-swap Txn to keep concurrent saves
// for the same workflow linearized (§5 requires per-workflow ordering;
// etcd's revision-based Txn gives that without an external lock).
type EtcdStore struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdStore returns a Store backed by an etcd cluster at endpoints.
func NewEtcdStore(endpoints []string, prefix string) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, fmt.Errorf("[checkpoint:NewEtcdStore] connecting to etcd: %w", err)
	}
	return &EtcdStore{client: cli, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

func (s *EtcdStore) key(workflowID string) string {
	return s.prefix + "/" + workflowID
}

func (s *EtcdStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("[checkpoint:EtcdStore.Save] marshaling record: %w", err)
	}
	key := s.key(rec.WorkflowID)

	current, err := s.client.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("[checkpoint:EtcdStore.Save] reading current revision: %w", err)
	}
	var rev int64
	if len(current.Kvs) > 0 {
		rev = current.Kvs[0].ModRevision
	}

	txn := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
		Then(clientv3.OpPut(key, string(data)))
	resp, err := txn.Commit()
	if err != nil {
		return fmt.Errorf("[checkpoint:EtcdStore.Save] committing txn: %w", err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("[checkpoint:EtcdStore.Save] concurrent write to %s, retry", key)
	}
	return nil
}

func (s *EtcdStore) Load(ctx context.Context, workflowID string) (Record, bool, error) {
	resp, err := s.client.Get(ctx, s.key(workflowID))
	if err != nil {
		return Record{}, false, fmt.Errorf("[checkpoint:EtcdStore.Load] %w", err)
	}
	if len(resp.Kvs) == 0 {
		return Record{}, false, nil
	}
	var rec Record
	if err := json.Unmarshal(resp.Kvs[0].Value, &rec); err != nil {
		return Record{}, false, fmt.Errorf("[checkpoint:EtcdStore.Load] unmarshaling record: %w", err)
	}
	return rec, true, nil
}

// LoadByID scans every key under the store's prefix for a record whose id
// matches checkpointID. EtcdStore keeps only the latest key per workflow,
// so this is a linear scan over however many workflows are live, not a
// history lookup within one workflow.
func (s *EtcdStore) LoadByID(ctx context.Context, checkpointID string) (Record, bool, error) {
	resp, err := s.client.Get(ctx, s.prefix+"/", clientv3.WithPrefix())
	if err != nil {
		return Record{}, false, fmt.Errorf("[checkpoint:EtcdStore.LoadByID] %w", err)
	}
	for _, kv := range resp.Kvs {
		var rec Record
		if err := json.Unmarshal(kv.Value, &rec); err != nil {
			continue
		}
		if rec.ID == checkpointID {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// Prune is a no-op: EtcdStore keeps exactly one key per workflow.
func (s *EtcdStore) Prune(_ context.Context, _ string, _ int) error { return nil }
