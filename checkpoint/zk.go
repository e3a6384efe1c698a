package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZKStore persists checkpoints under a ZooKeeper path prefix, one znode
// per workflow_id. Grounded on tools/zk-put.go's connect/ensure-parent-
// path idiom, generalized from a one-shot CLI write into a long-lived
// Store with Load/Prune.
type ZKStore struct {
	conn   *zk.Conn
	prefix string
}

// NewZKStore connects to servers and returns a Store rooted at prefix
// (e.g. "/pml/checkpoints").
func NewZKStore(servers []string, prefix string) (*ZKStore, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("[checkpoint:NewZKStore] connecting to zookeeper: %w", err)
	}
	return &ZKStore{conn: conn, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

func (s *ZKStore) path(workflowID string) string {
	return s.prefix + "/" + workflowID
}

func (s *ZKStore) ensureParents(path string) error {
	parts := splitZKPath(path)
	parent := ""
	for i := 0; i < len(parts)-1; i++ {
		parent += "/" + parts[i]
		exists, _, err := s.conn.Exists(parent)
		if err != nil {
			return fmt.Errorf("checking path %s: %w", parent, err)
		}
		if !exists {
			if _, err := s.conn.Create(parent, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
				return fmt.Errorf("creating parent path %s: %w", parent, err)
			}
		}
	}
	return nil
}

func (s *ZKStore) Save(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("[checkpoint:ZKStore.Save] marshaling record: %w", err)
	}

	path := s.path(rec.WorkflowID)
	if err := s.ensureParents(path); err != nil {
		return fmt.Errorf("[checkpoint:ZKStore.Save] %w", err)
	}

	exists, stat, err := s.conn.Exists(path)
	if err != nil {
		return fmt.Errorf("[checkpoint:ZKStore.Save] checking path: %w", err)
	}
	if exists {
		if _, err := s.conn.Set(path, data, stat.Version); err != nil {
			return fmt.Errorf("[checkpoint:ZKStore.Save] updating node: %w", err)
		}
		return nil
	}
	if _, err := s.conn.Create(path, data, 0, zk.WorldACL(zk.PermAll)); err != nil {
		return fmt.Errorf("[checkpoint:ZKStore.Save] creating node: %w", err)
	}
	return nil
}

func (s *ZKStore) Load(_ context.Context, workflowID string) (Record, bool, error) {
	data, _, err := s.conn.Get(s.path(workflowID))
	if err == zk.ErrNoNode {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("[checkpoint:ZKStore.Load] %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("[checkpoint:ZKStore.Load] unmarshaling record: %w", err)
	}
	return rec, true, nil
}

// LoadByID lists every znode under the store's prefix and returns the one
// whose id matches checkpointID. Like EtcdStore, ZKStore keeps only the
// latest znode per workflow, so this scans across workflows rather than
// within one workflow's history.
func (s *ZKStore) LoadByID(_ context.Context, checkpointID string) (Record, bool, error) {
	children, _, err := s.conn.Children(s.prefix)
	if err != nil {
		if err == zk.ErrNoNode {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("[checkpoint:ZKStore.LoadByID] listing %s: %w", s.prefix, err)
	}
	for _, child := range children {
		data, _, err := s.conn.Get(s.prefix + "/" + child)
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.ID == checkpointID {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// Prune is a no-op: ZKStore keeps exactly one znode per workflow (the
// latest checkpoint), so there is no history to trim.
func (s *ZKStore) Prune(_ context.Context, _ string, _ int) error { return nil }

func splitZKPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
