package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kadirpekel/hector-pml/workflow"
)

// FileSource loads the tool-permissions table from a JSON file on disk
// and hot-reloads it on write via fsnotify, so an operator editing the
// permissions file does not require restarting the process to change a
// tool's approval/scope/read_only row.
type FileSource struct {
	path string

	mu     sync.RWMutex
	cached map[string]workflow.ToolPermission
}

// NewFileSource returns a FileSource reading path, a JSON file holding a
// map of tool name to workflow.ToolPermission.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Permissions(_ context.Context) (map[string]workflow.ToolPermission, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("[safety:FileSource.Permissions] reading %s: %w", s.path, err)
	}
	var table map[string]workflow.ToolPermission
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("[safety:FileSource.Permissions] decoding %s: %w", s.path, err)
	}
	for name, p := range table {
		if p.Tool == "" {
			p.Tool = name
			table[name] = p
		}
	}

	s.mu.Lock()
	s.cached = table
	s.mu.Unlock()

	return table, nil
}

// Watch starts an fsnotify watcher on the permissions file and calls
// onChange with a freshly loaded table whenever the file is written.
// Watch blocks until ctx is canceled; callers should run it in its own
// goroutine.
func (s *FileSource) Watch(ctx context.Context, onChange func(map[string]workflow.ToolPermission)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("[safety:FileSource.Watch] creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return fmt.Errorf("[safety:FileSource.Watch] watching %s: %w", s.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			table, err := s.Permissions(ctx)
			if err != nil {
				continue
			}
			onChange(table)
		case <-watcher.Errors:
			continue
		}
	}
}
