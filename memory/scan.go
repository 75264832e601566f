package memory

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// Severity ranks a scan issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IssueKind identifies what a scan issue flags.
type IssueKind string

const (
	IssueEmptyContent     IssueKind = "empty-content"
	IssueMissingTitle     IssueKind = "missing-title"
	IssueLowConfidence    IssueKind = "low-confidence"
	IssueUntagged         IssueKind = "untagged"
	IssueDuplicateContent IssueKind = "duplicate-content"
)

// Issue is one finding of a corpus health scan.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	RecordID string    `json:"record_id"`
	Detail   string    `json:"detail,omitempty"`

	// DuplicateOf names the earlier record with identical text; set only
	// on duplicate-content issues.
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// ScanReport summarizes one health scan pass.
type ScanReport struct {
	Scanned int     `json:"scanned"`
	Issues  []Issue `json:"issues"`
}

// LowConfidenceFloor is the confidence below which Scan flags a record.
const LowConfidenceFloor = 0.5

// Scan walks the corpus (bounded by the configured stats cap) and reports
// hygiene issues: empty content, missing titles, low confidence, missing
// tags, and duplicated text. Read-only; repair paths (such as
// llm.GenerateMissingTitles for titles) belong to callers.
func (s *Store) Scan(ctx context.Context) (*ScanReport, error) {
	recs, err := s.listAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{Scanned: len(recs)}
	seen := make(map[[sha256.Size]byte]string, len(recs))

	for _, rec := range recs {
		if rec.Content.Empty() {
			report.Issues = append(report.Issues, Issue{
				Kind:     IssueEmptyContent,
				Severity: SeverityHigh,
				RecordID: rec.ID,
			})
		}
		if rec.Title == "" {
			report.Issues = append(report.Issues, Issue{
				Kind:     IssueMissingTitle,
				Severity: SeverityMedium,
				RecordID: rec.ID,
			})
		}
		if rec.Confidence < LowConfidenceFloor {
			report.Issues = append(report.Issues, Issue{
				Kind:     IssueLowConfidence,
				Severity: SeverityLow,
				RecordID: rec.ID,
				Detail:   fmt.Sprintf("confidence %.2f", rec.Confidence),
			})
		}
		if len(rec.Tags) == 0 {
			report.Issues = append(report.Issues, Issue{
				Kind:     IssueUntagged,
				Severity: SeverityLow,
				RecordID: rec.ID,
			})
		}

		h := sha256.Sum256([]byte(rec.Text))
		if first, ok := seen[h]; ok {
			report.Issues = append(report.Issues, Issue{
				Kind:        IssueDuplicateContent,
				Severity:    SeverityMedium,
				RecordID:    rec.ID,
				DuplicateOf: first,
			})
		} else {
			seen[h] = rec.ID
		}
	}

	logger.Info("scan complete", "scanned", report.Scanned, "issues", len(report.Issues))
	return report, nil
}
