package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Ledger keys owned by the record itself. Sample fields may not use them.
const (
	RecordKeyHITID      = "hit_id"
	RecordKeyHITGroupID = "hit_group_id"
	RecordKeyTaskName   = "task_name"
	RecordKeyPreview    = "preview"
	RecordKeyCreatedAt  = "created_at"
)

var reservedRecordKeys = []string{
	RecordKeyHITID,
	RecordKeyHITGroupID,
	RecordKeyTaskName,
	RecordKeyPreview,
	RecordKeyCreatedAt,
}

// IsReservedRecordKey reports whether key is one of the record's own keys
func IsReservedRecordKey(key string) bool {
	for _, k := range reservedRecordKeys {
		if k == key {
			return true
		}
	}
	return false
}

// JobRecord is the persisted union of a submitted HIT and the sample it was built from.
// It is serialized as a single flat mapping.
type JobRecord struct {
	HITID      string
	HITGroupID string
	TaskName   string
	Preview    string
	CreatedAt  time.Time
	Sample     Sample
}

// Matches reports whether the record was filed under taskName and carries every
// field of sample with an identical value. Extra record fields are ignored.
func (r *JobRecord) Matches(taskName string, sample Sample) bool {
	if r.TaskName != taskName {
		return false
	}
	for k, v := range sample {
		got, ok := r.Sample[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// MarshalYAML flattens the record; record keys come first, sample keys follow sorted.
func (r JobRecord) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, value string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
		)
	}

	add(RecordKeyHITID, r.HITID)
	add(RecordKeyHITGroupID, r.HITGroupID)
	add(RecordKeyTaskName, r.TaskName)
	if r.Preview != "" {
		add(RecordKeyPreview, r.Preview)
	}
	if !r.CreatedAt.IsZero() {
		add(RecordKeyCreatedAt, r.CreatedAt.UTC().Format(time.RFC3339))
	}

	keys := make([]string, 0, len(r.Sample))
	for k := range r.Sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if IsReservedRecordKey(k) {
			return nil, fmt.Errorf("sample field %q collides with a record key", k)
		}
		add(k, r.Sample[k])
	}

	return node, nil
}

// UnmarshalYAML accepts any flat mapping of scalars. Numbers and booleans are
// normalised to strings so hand-edited ledgers still compare equal.
func (r *JobRecord) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: ledger record is not a mapping", value.Line)
	}

	var raw map[string]interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	rec := JobRecord{Sample: make(Sample)}
	for k, v := range raw {
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Errorf("line %d: field %q: %w", value.Line, k, err)
		}
		switch k {
		case RecordKeyHITID:
			rec.HITID = s
		case RecordKeyHITGroupID:
			rec.HITGroupID = s
		case RecordKeyTaskName:
			rec.TaskName = s
		case RecordKeyPreview:
			rec.Preview = s
		case RecordKeyCreatedAt:
			t, err := cast.ToTimeE(v)
			if err != nil {
				return fmt.Errorf("line %d: created_at: %w", value.Line, err)
			}
			rec.CreatedAt = t
		default:
			rec.Sample[k] = s
		}
	}

	*r = rec
	return nil
}
