package entities

import (
	"fmt"
	"time"
)

// ResolutionStatus distinguishes the three outcomes a UI has to present.
type ResolutionStatus string

const (
	StatusUpdateAvailable ResolutionStatus = "update-available"
	StatusUpToDate        ResolutionStatus = "up-to-date"
	StatusFailed          ResolutionStatus = "failed"
)

// ResolutionRecord summarizes the update status of one reference.
// Records are immutable once returned by the orchestrator.
type ResolutionRecord struct {
	Reference      Reference
	CurrentRef     string
	CurrentVersion string // effective version; empty when unknown
	DisplayVersion string // what to show for the current pin
	Kind           RefKind
	LatestVersion  *string
	LatestHash     *string // nil means there is no safe pin target
	PublishedAt    *time.Time
	Severity       Severity
	IsBreaking     bool
	HasUpdate      bool
	Status         ResolutionStatus
	Err            error
}

// Selectable reports whether a consumer may pick this record for automatic pinning.
// Breaking updates are selectable but a UI should leave them unchecked by default.
func (r ResolutionRecord) Selectable() bool {
	return r.HasUpdate && r.LatestHash != nil && r.Status != StatusFailed
}

// SelectedByDefault reports whether the record should be pre-selected.
func (r ResolutionRecord) SelectedByDefault() bool {
	return r.Selectable() && !r.IsBreaking
}

// IdentityKey is the merge key: file, line, name and current version.
func (r ResolutionRecord) IdentityKey() string {
	p := r.Reference.Provenance
	return fmt.Sprintf("%s:%d:%s:%s", p.File, p.Line, r.Reference.DisplayName(), r.CurrentRef)
}

// String implements fmt.Stringer for ResolutionRecord.
func (r ResolutionRecord) String() string {
	switch r.Status {
	case StatusFailed:
		return fmt.Sprintf("%s: failed: %v", r.Reference.Uses(), r.Err)
	case StatusUpToDate:
		return fmt.Sprintf("%s: up to date (%s)", r.Reference.Uses(), r.DisplayVersion)
	}

	latest := deref(r.LatestVersion)
	hash := "no pin target"
	if r.LatestHash != nil {
		hash = ShortHash(*r.LatestHash)
	}
	breaking := ""
	if r.IsBreaking {
		breaking = " BREAKING"
	}
	return fmt.Sprintf("%s: %s -> %s (%s, %s)%s",
		r.Reference.Uses(), r.DisplayVersion, latest, r.Severity, hash, breaking)
}

// Diagnostic is a non-fatal, per-reference failure.
type Diagnostic struct {
	Reference Reference
	Reason    string
	Err       error
}

// String implements fmt.Stringer for Diagnostic.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Reference.Uses(), d.Reason)
}

// ScanResult is the output of resolving the references of one scan pass.
type ScanResult struct {
	Name        string
	Records     []ResolutionRecord
	Diagnostics []Diagnostic
}

// Summary counts records by status.
type Summary struct {
	Updates  int
	UpToDate int
	Failed   int
}

// Summary counts the records of the result by status.
func (s ScanResult) Summary() Summary {
	var summary Summary
	for _, record := range s.Records {
		switch record.Status {
		case StatusUpdateAvailable:
			summary.Updates++
		case StatusUpToDate:
			summary.UpToDate++
		case StatusFailed:
			summary.Failed++
		}
	}
	return summary
}

// MergeScanResults combines independent scan results. Records are kept in input
// order and deduplicated on (file, line, name, current version); the first
// occurrence wins. Diagnostics are deduplicated on the same key.
func MergeScanResults(results ...ScanResult) ScanResult {
	merged := ScanResult{Name: mergedName(results)}
	seenRecords := make(map[string]bool)
	seenDiagnostics := make(map[string]bool)

	for _, result := range results {
		for _, record := range result.Records {
			key := record.IdentityKey()
			if seenRecords[key] {
				continue
			}
			seenRecords[key] = true
			merged.Records = append(merged.Records, record)
		}
		for _, diagnostic := range result.Diagnostics {
			key := ResolutionRecord{Reference: diagnostic.Reference, CurrentRef: diagnostic.Reference.CurrentRef}.IdentityKey()
			if seenDiagnostics[key] {
				continue
			}
			seenDiagnostics[key] = true
			merged.Diagnostics = append(merged.Diagnostics, diagnostic)
		}
	}

	return merged
}

func mergedName(results []ScanResult) string {
	if len(results) == 1 {
		return results[0].Name
	}
	return fmt.Sprintf("merged(%d)", len(results))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
