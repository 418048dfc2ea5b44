package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type record struct {
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	DDTID       string     `json:"ddt_id,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
}

func (r record) lastTouched() time.Time {
	var t time.Time
	if r.AcceptedAt != nil {
		t = *r.AcceptedAt
	}
	if r.ProcessedAt != nil && r.ProcessedAt.After(t) {
		t = *r.ProcessedAt
	}
	return t
}

// FileTracker persists marks to a JSON file laid out as
// marketplace -> order id -> record. The file is read once at construction
// and rewritten after every mutation. Only one process may use a given file.
type FileTracker struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	data      map[string]map[string]record
	now       func() time.Time
	log       *slog.Logger
}

func NewFileTracker(path string, retention time.Duration, logger *slog.Logger) *FileTracker {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	t := &FileTracker{
		path:      path,
		retention: retention,
		now:       time.Now,
		log:       logger.With("component", "tracker"),
	}
	t.data = t.load()
	return t
}

func (t *FileTracker) load() map[string]map[string]record {
	data := make(map[string]map[string]record)
	raw, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return data
	}
	if err != nil {
		t.log.Error("failed to read tracker file", "path", t.path, "error", err)
		return data
	}

	var doc map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.quarantine(err)
		return data
	}

	cutoff := t.now().Add(-t.retention)
	kept, expired, invalid := 0, 0, 0
	for mp, orders := range doc {
		for id, entry := range orders {
			rec, err := decodeRecord(entry)
			if err != nil {
				t.log.Warn("skipping unreadable tracker entry", "marketplace", mp, "order", id, "error", err)
				invalid++
				continue
			}
			if rec.lastTouched().Before(cutoff) {
				expired++
				continue
			}
			if data[mp] == nil {
				data[mp] = make(map[string]record)
			}
			data[mp][id] = rec
			kept++
		}
	}
	t.log.Info("tracker loaded", "path", t.path, "orders", kept, "expired", expired, "invalid", invalid)
	return data
}

// quarantine moves an unreadable file aside so the next save cannot
// overwrite it.
func (t *FileTracker) quarantine(cause error) {
	dst := t.path + ".corrupt"
	if err := os.Rename(t.path, dst); err != nil {
		t.log.Error("corrupt tracker file could not be moved aside", "path", t.path, "error", err, "cause", cause)
		return
	}
	t.log.Error("corrupt tracker file moved aside, starting empty", "path", t.path, "moved_to", dst, "error", cause)
}

// Timestamps are written as RFC 3339. Older files carry naive local times.
var stampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseStamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range stampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", s)
}

func decodeRecord(raw json.RawMessage) (record, error) {
	var w struct {
		ProcessedAt *string         `json:"processed_at"`
		DDTID       json.RawMessage `json:"ddt_id"`
		AcceptedAt  *string         `json:"accepted_at"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return record{}, err
	}

	var rec record
	var err error
	if w.ProcessedAt != nil {
		if rec.ProcessedAt, err = parseStamp(*w.ProcessedAt); err != nil {
			return record{}, fmt.Errorf("processed_at: %w", err)
		}
	}
	if w.AcceptedAt != nil {
		if rec.AcceptedAt, err = parseStamp(*w.AcceptedAt); err != nil {
			return record{}, fmt.Errorf("accepted_at: %w", err)
		}
	}
	if rec.DDTID, err = decodeDDTID(w.DDTID); err != nil {
		return record{}, err
	}
	return rec, nil
}

// decodeDDTID accepts a string, a bare number or null.
func decodeDDTID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("ddt_id: %w", err)
	}
	return n.String(), nil
}

// save must be called with mu held.
func (t *FileTracker) save() error {
	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tracker: %w", err)
	}
	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write tracker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tracker: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("replace tracker: %w", err)
	}
	return nil
}

func (t *FileTracker) get(marketplace, orderID string) (record, bool) {
	rec, ok := t.data[marketplace][orderID]
	return rec, ok
}

func (t *FileTracker) update(marketplace, orderID string, fn func(*record)) error {
	orders, ok := t.data[marketplace]
	if !ok {
		orders = make(map[string]record)
		t.data[marketplace] = orders
	}
	rec := orders[orderID]
	fn(&rec)
	orders[orderID] = rec
	if err := t.save(); err != nil {
		t.log.Error("failed to save tracker", "marketplace", marketplace, "order", orderID, "error", err)
		return err
	}
	return nil
}

func (t *FileTracker) IsProcessed(_ context.Context, marketplace, orderID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.get(marketplace, orderID)
	return ok && rec.ProcessedAt != nil, nil
}

func (t *FileTracker) IsAccepted(_ context.Context, marketplace, orderID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.get(marketplace, orderID)
	return ok && rec.AcceptedAt != nil, nil
}

func (t *FileTracker) MarkAccepted(_ context.Context, marketplace, orderID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	return t.update(marketplace, orderID, func(r *record) { r.AcceptedAt = &now })
}

func (t *FileTracker) MarkProcessed(_ context.Context, marketplace, orderID, ddtID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	err := t.update(marketplace, orderID, func(r *record) {
		r.ProcessedAt = &now
		r.DDTID = ddtID
	})
	if err == nil {
		t.log.Info("order marked processed", "marketplace", marketplace, "order", orderID, "ddt", ddtID)
	}
	return err
}

func (t *FileTracker) Stats(_ context.Context) (map[string]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.data))
	for mp, orders := range t.data {
		for _, rec := range orders {
			if rec.ProcessedAt != nil {
				out[mp]++
			}
		}
	}
	return out, nil
}
