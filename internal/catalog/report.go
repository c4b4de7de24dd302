package catalog

import (
	"fmt"
	"time"
)

// DivergenceKind classifies what reconciliation found
type DivergenceKind string

const (
	// KindOrphanDataDirectory is a metadata record missing from the catalog; it gets registered
	KindOrphanDataDirectory DivergenceKind = "orphan_data_directory"
	// KindOrphanIndexEntry is a catalog entry without metadata; the entry is dropped
	KindOrphanIndexEntry DivergenceKind = "orphan_index_entry"
	// KindNameConflict is an unregistered vault whose name is taken; it is registered archived
	KindNameConflict DivergenceKind = "name_conflict"
	// KindStaleIndexEntry is an entry whose fields drifted from its metadata; it is refreshed
	KindStaleIndexEntry DivergenceKind = "stale_index_entry"
	// KindMissingDataStore is a vault without a data store; an empty one is created
	KindMissingDataStore DivergenceKind = "missing_data_store"
	// KindCounterDrift is a cached transaction count that disagrees with the data store
	KindCounterDrift DivergenceKind = "counter_drift"
	// KindOrderGap is a non-contiguous or duplicated custom order; it is renumbered
	KindOrderGap DivergenceKind = "order_gap"
	// KindActivePointer is a missing, dangling or archived active pointer; it is reassigned
	KindActivePointer DivergenceKind = "active_pointer"
	// KindCorruptCatalog is an unreadable catalog file; it is rebuilt from metadata
	KindCorruptCatalog DivergenceKind = "corrupt_catalog"
	// KindUnreadableMetadata is a metadata record that cannot be parsed; reported only
	KindUnreadableMetadata DivergenceKind = "unreadable_metadata"
	// KindUnexplainedData is a data store with no metadata; reported only, never deleted
	KindUnexplainedData DivergenceKind = "unexplained_data"
	// KindUnreadableDataStore is a data store that cannot be opened for counting; reported only
	KindUnreadableDataStore DivergenceKind = "unreadable_data_store"
)

// Soft reports whether the divergence is an expected cache drift rather than a consistency fault
func (k DivergenceKind) Soft() bool {
	return k == KindCounterDrift
}

// Repairable reports whether reconciliation fixes this kind automatically
func (k DivergenceKind) Repairable() bool {
	switch k {
	case KindUnreadableMetadata, KindUnexplainedData, KindUnreadableDataStore:
		return false
	}
	return true
}

// Divergence is one finding of a reconciliation pass
type Divergence struct {
	Kind    DivergenceKind `json:"kind"`
	VaultID string         `json:"vault_id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Detail  string         `json:"detail,omitempty"`
	// Repaired is false for dry runs and for kinds that are only reported
	Repaired bool `json:"repaired"`
}

func (d Divergence) String() string {
	s := string(d.Kind)
	if d.VaultID != "" {
		s += " " + d.VaultID
	}
	if d.Name != "" {
		s += fmt.Sprintf(" (%s)", d.Name)
	}
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}

// RepairReport describes a reconciliation pass
type RepairReport struct {
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	DryRun      bool         `json:"dry_run"`
	Divergences []Divergence `json:"divergences"`
	Vaults      int          `json:"vaults"`
}

func (r *RepairReport) add(d Divergence) {
	d.Repaired = !r.DryRun && d.Kind.Repairable()
	r.Divergences = append(r.Divergences, d)
}

// Clean reports whether nothing diverged
func (r *RepairReport) Clean() bool {
	return len(r.Divergences) == 0
}

// Changed reports whether the pass modified (or, in a dry run, would modify) persisted state
func (r *RepairReport) Changed() bool {
	for _, d := range r.Divergences {
		if d.Kind.Repairable() {
			return true
		}
	}
	return false
}

// Count returns the number of divergences of kind
func (r *RepairReport) Count(kind DivergenceKind) int {
	n := 0
	for _, d := range r.Divergences {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Err returns a *ConsistencyError listing the hard divergences, or nil when only
// soft counter drift was found
func (r *RepairReport) Err() error {
	var hard []Divergence
	for _, d := range r.Divergences {
		if !d.Kind.Soft() {
			hard = append(hard, d)
		}
	}
	if len(hard) == 0 {
		return nil
	}
	return &ConsistencyError{Divergences: hard}
}
