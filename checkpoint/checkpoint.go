// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package checkpoint persists workflow.WorkflowState at layer boundaries
// so a controller can resume a workflow without re-executing already
// completed tasks (P5).
//
// Architecture (derived from the legacy checkpoint package): a Store is a
// thin persistence contract; this package also owns content-hash
// coalescing (identical-hash saves are no-ops) so a backend never fields
// duplicate writes for a layer whose state did not actually change.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/kadirpekel/hector-pml/workflow"
)

// Store persists and retrieves workflow.CheckpointRecords. It satisfies
// workflow.CheckpointStore; implementations live alongside this file
// (memory.go, etcd.go, zk.go).
type Store = workflow.CheckpointStore

// Record is an alias kept for callers that prefer importing this package
// over workflow directly.
type Record = workflow.CheckpointRecord

// Coalescing wraps a Store and skips a Save whose hash matches the last
// hash actually persisted for that workflow, avoiding redundant writes
// when a layer produces no observable state change (e.g. an all-skipped
// layer).
type Coalescing struct {
	inner    Store
	lastHash map[string]string
}

// NewCoalescing wraps inner with hash-based save coalescing.
func NewCoalescing(inner Store) *Coalescing {
	return &Coalescing{inner: inner, lastHash: map[string]string{}}
}

func (c *Coalescing) Save(ctx context.Context, rec Record) error {
	if c.lastHash[rec.WorkflowID] == rec.Hash {
		return nil
	}
	if err := c.inner.Save(ctx, rec); err != nil {
		return fmt.Errorf("[checkpoint:Save] %w", err)
	}
	c.lastHash[rec.WorkflowID] = rec.Hash
	return nil
}

func (c *Coalescing) Load(ctx context.Context, workflowID string) (Record, bool, error) {
	return c.inner.Load(ctx, workflowID)
}

func (c *Coalescing) LoadByID(ctx context.Context, checkpointID string) (Record, bool, error) {
	return c.inner.LoadByID(ctx, checkpointID)
}

func (c *Coalescing) Prune(ctx context.Context, workflowID string, keepLast int) error {
	return c.inner.Prune(ctx, workflowID, keepLast)
}
