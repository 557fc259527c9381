package transport

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pion/webrtc/v4"
)

// snapshotFromPion re-reads a pion stats report through its JSON form so the
// W3C field names are the only contract. Entries that do not fit Report are
// skipped.
func snapshotFromPion(report webrtc.StatsReport, taken time.Time) (Snapshot, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return Snapshot{}, fmt.Errorf("transport: encode stats: %w", err)
	}
	return ParseSnapshot(raw, taken)
}

// ParseSnapshot decodes a JSON object of id -> stats dictionary.
func ParseSnapshot(raw []byte, taken time.Time) (Snapshot, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Snapshot{}, fmt.Errorf("transport: decode stats: %w", err)
	}

	snap := Snapshot{Taken: taken, Reports: make([]Report, 0, len(entries))}
	for id, entry := range entries {
		var r Report
		if err := json.Unmarshal(entry, &r); err != nil {
			continue
		}
		if r.ID == "" {
			r.ID = id
		}
		snap.Reports = append(snap.Reports, r)
	}
	sort.Slice(snap.Reports, func(i, j int) bool {
		return snap.Reports[i].ID < snap.Reports[j].ID
	})
	return snap, nil
}
