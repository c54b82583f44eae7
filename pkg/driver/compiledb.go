package driver

import (
	"sync"

	"github.com/containifyci/builder/pkg/backend"
)

// compilationDB is a thread-safe accumulator for compile-command-database
// entries gathered while worker-pool goroutines compile translation
// units concurrently. Adapted from the teacher's pkg/utils.IDStore
// (sync.RWMutex-guarded Add/Get over a string slice), generalised from
// "accumulate container/job IDs" to "accumulate compilation-database
// entries".
type compilationDB struct {
	mu      sync.RWMutex
	entries []backend.CompilationDatabaseEntry
}

func (d *compilationDB) Add(e backend.CompilationDatabaseEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, e)
}

func (d *compilationDB) Get() []backend.CompilationDatabaseEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries
}
