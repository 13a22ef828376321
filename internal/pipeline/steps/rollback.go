// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package steps

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/cloudwego/i18nagent/internal/pipeline"
)

// Restorer restores a snapshot by id.
type Restorer interface {
	Restore(ctx context.Context, id string) (*pipeline.RestoreResult, error)
}

// Rollback restores the run snapshot named in the context.
type Rollback struct {
	Snapshots Restorer
}

var _ pipeline.Tool = (*Rollback)(nil)

// Execute implements pipeline.Tool. Per-file restore failures are returned
// together with the partial result.
func (r *Rollback) Execute(ctx context.Context, st pipeline.AgentState) (*pipeline.ToolResult, error) {
	id := st.Context.String(pipeline.KeySnapshotID)
	if id == "" {
		return nil, errors.New("no snapshot to roll back to")
	}
	res, err := r.Snapshots.Restore(ctx, id)
	if res == nil {
		return nil, errors.Wrapf(err, "restore snapshot %s", id)
	}
	out := &pipeline.ToolResult{
		Summary: fmt.Sprintf("restored %d files and deleted %d from snapshot %s", res.Restored, len(res.Deleted), id),
		Context: map[string]any{pipeline.KeyRollbackResults: *res},
	}
	return out, err
}
