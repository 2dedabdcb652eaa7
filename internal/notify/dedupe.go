package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Registry is the dedupe gate of spec §5/§9: a keyed mapping
// imageId -> lastLogId, persisted as one JSON file per handler and guarded
// by a single mutex (spec §5: "one lock per registry file").
//
// EmitIfDistinct reproduces _is_log_not_repeated exactly: it returns true
// both on first-ever insertion for a given imageId key AND whenever logId
// differs from the stored one — not merely "true if different" (spec §9
// Open Question 3). Either true outcome updates the stored value as a side
// effect, matching the Python original's check-and-set-together behaviour.
type Registry struct {
	mu   sync.Mutex
	path string
}

// NewRegistry returns a Registry backed by dir/handlerID.json, creating dir
// if it does not already exist.
func NewRegistry(dir, handlerID string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("notify: creating registry dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, handlerID+".json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := atomicWriteJSON(path, map[string]string{}); err != nil {
			return nil, err
		}
	}
	return &Registry{path: path}, nil
}

// EmitIfDistinct is the check-and-set primitive `emitIfDistinct` of spec §5.
func (r *Registry) EmitIfDistinct(imageID, logID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, err := r.read()
	if err != nil {
		return false, err
	}

	stored, exists := last[imageID]
	if !exists || stored != logID {
		last[imageID] = logID
		if err := atomicWriteJSON(r.path, last); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (r *Registry) read() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("notify: reading registry %s: %w", r.path, err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("notify: parsing registry %s: %w", r.path, err)
	}
	return m, nil
}

// atomicWriteJSON writes v to path by writing a temp file in the same
// directory and renaming over path, guaranteeing readers never observe a
// partially-written file (spec §9: "guarantee atomic replace").
func atomicWriteJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("notify: encoding registry: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("notify: creating temp registry file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("notify: writing temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("notify: closing temp registry file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("notify: renaming temp registry file: %w", err)
	}
	return nil
}
