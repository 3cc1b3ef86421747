// Package ledger keeps the local record of submitted HITs.
//
// The ledger is a YAML list on disk. Records are only ever appended; each
// append writes one complete list entry so the file stays parseable after
// every submission. There is no locking: one hitctl process at a time.
package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/psantana5/hitctl/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrReservedKey is returned when a sample field shadows a record key
var ErrReservedKey = errors.New("sample field collides with a ledger key")

// Ledger answers "was this sample already submitted?" and records new HITs
type Ledger struct {
	path   string
	logger *logging.Logger

	mu      sync.Mutex
	loaded  bool
	records []models.JobRecord

	// EnableSync fsyncs after every append
	EnableSync bool
	// ReadOnly keeps appended records in memory only (used by --dry-run)
	ReadOnly bool
}

// Open binds a ledger to path. The file is not read until first use and need not exist.
func Open(path string, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Ledger{
		path:   path,
		logger: logger.WithField("ledger", path),
	}
}

// Path returns the ledger file location
func (l *Ledger) Path() string {
	return l.path
}

// Records returns every record in file order
func (l *Ledger) Records() ([]models.JobRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]models.JobRecord, len(l.records))
	copy(out, l.records)
	return out, nil
}

// ForTask returns the records filed under taskName
func (l *Ledger) ForTask(taskName string) ([]models.JobRecord, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	var out []models.JobRecord
	for _, r := range records {
		if r.TaskName == taskName {
			out = append(out, r)
		}
	}
	return out, nil
}

// HITIDs returns the distinct HIT ids in the ledger, optionally limited to some tasks
func (l *Ledger) HITIDs(taskNames ...string) ([]string, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(taskNames))
	for _, n := range taskNames {
		wanted[n] = true
	}

	seen := make(map[string]bool, len(records))
	var ids []string
	for _, r := range records {
		if len(wanted) > 0 && !wanted[r.TaskName] {
			continue
		}
		if r.HITID == "" || seen[r.HITID] {
			continue
		}
		seen[r.HITID] = true
		ids = append(ids, r.HITID)
	}
	return ids, nil
}

// Exists reports whether a record filed under taskName carries every field of
// sample with the same value. A missing ledger has no records. A ledger that
// cannot be read is logged and treated as holding no match.
func (l *Ledger) Exists(taskName string, sample models.Sample) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.loadLocked(); err != nil {
		l.logger.Error("Failed to read ledger", logging.Fields{"error": err.Error()})
		return false
	}

	for i := range l.records {
		if l.records[i].Matches(taskName, sample) {
			return true
		}
	}
	return false
}

// Append writes record as one new ledger entry
func (l *Ledger) Append(record models.JobRecord) error {
	for k := range record.Sample {
		if models.IsReservedRecordKey(k) {
			return fmt.Errorf("%w: %q", ErrReservedKey, k)
		}
	}

	data, err := yaml.Marshal([]models.JobRecord{record})
	if err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ReadOnly {
		if err := l.loadLocked(); err != nil {
			return err
		}
		l.records = append(l.records, record)
		return nil
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	// A hand-edited ledger may lack a trailing newline
	needsNewline, err := missingTrailingNewline(f)
	if err != nil {
		return fmt.Errorf("failed to inspect ledger: %w", err)
	}
	if needsNewline {
		data = append([]byte("\n"), data...)
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to append ledger record: %w", err)
	}
	if l.EnableSync {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync ledger: %w", err)
		}
	}

	if l.loaded {
		l.records = append(l.records, record)
	}

	l.logger.Debug("Recorded HIT", logging.Fields{"hit_id": record.HITID, "task": record.TaskName})
	return nil
}

func (l *Ledger) loadLocked() error {
	if l.loaded {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.records = nil
			l.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	var records []models.JobRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse ledger: %w", err)
	}

	l.records = records
	l.loaded = true
	return nil
}

func missingTrailingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return last[0] != '\n', nil
}
