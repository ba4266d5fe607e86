// Package scoring derives assessment verdicts from checklist completion
// state. It is pure: no I/O, no logging, deterministic for a given input.
package scoring

import (
	"fmt"
	"sort"

	"github.com/resq-training/checklist-service/internal/models"
)

// Policy selects the gating rule used to derive a verdict.
type Policy string

const (
	// PolicyCompulsory passes only when every compulsory item is completed.
	// Used by all CPR checklist types.
	PolicyCompulsory Policy = "compulsory"

	// PolicyQuota passes when at least QuotaThreshold items are completed,
	// regardless of which ones. Used by the choking checklist types.
	PolicyQuota Policy = "quota"
)

// QuotaThreshold is the minimum completed-item count for a PASS under
// PolicyQuota.
const QuotaThreshold = 4

// PolicyFor returns the gating policy for a checklist type.
func PolicyFor(t models.ChecklistType) Policy {
	if t.IsChoking() {
		return PolicyQuota
	}
	return PolicyCompulsory
}

// CompletionSet holds the item ids a participant has marked complete
// during an in-progress attempt. It is view-local state: never shared
// between attempts and never persisted before submission.
type CompletionSet map[uint]struct{}

func NewCompletionSet(ids ...uint) CompletionSet {
	s := make(CompletionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s CompletionSet) Mark(id uint)   { s[id] = struct{}{} }
func (s CompletionSet) Unmark(id uint) { delete(s, id) }

func (s CompletionSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

// Result is the derived outcome of scoring an attempt. It is computed
// fresh on every call and never mutated afterwards.
type Result struct {
	CompletedCount int
	TotalCount     int
	Percentage     float64
	CompulsoryMet  bool
	Verdict        models.Verdict
	Sections       []models.SectionResult
}

// BuildSections sorts items by order index (stable, so duplicate indices
// keep encounter order) and groups them into sections preserving the
// order sections are first seen. Unknown section names are accepted.
func BuildSections(items []*models.ChecklistItem) []models.ChecklistSection {
	sorted := make([]*models.ChecklistItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})

	var sections []models.ChecklistSection
	index := make(map[string]int)
	for _, item := range sorted {
		i, ok := index[item.Section]
		if !ok {
			i = len(sections)
			index[item.Section] = i
			sections = append(sections, models.ChecklistSection{Name: item.Section})
		}
		sections[i].Items = append(sections[i].Items, item)
	}
	return sections
}

// Score derives the verdict for the given sections and completion state
// under the selected policy.
//
// Verdict derivation: zero completed items is always INCOMPLETE; otherwise
// PASS when the policy's pass condition holds, FAIL when it does not.
// Percentage is 0 when there are no items at all.
func Score(sections []models.ChecklistSection, completed CompletionSet, policy Policy) Result {
	res := Result{
		Sections: make([]models.SectionResult, 0, len(sections)),
	}

	compulsoryMissing := false
	for _, section := range sections {
		sr := models.SectionResult{
			Section:   section.Name,
			Completed: true, // vacuously true for an empty section
			Items:     make([]models.ScoredItem, 0, len(section.Items)),
		}
		for _, item := range section.Items {
			done := completed.Has(item.ID)
			res.TotalCount++
			if done {
				res.CompletedCount++
			} else {
				sr.Completed = false
				if item.Compulsory {
					compulsoryMissing = true
				}
			}
			sr.Items = append(sr.Items, models.ScoredItem{
				ItemID:     item.ID,
				Text:       item.Text,
				Completed:  done,
				Compulsory: item.Compulsory,
			})
		}
		res.Sections = append(res.Sections, sr)
	}

	if res.TotalCount > 0 {
		res.Percentage = float64(res.CompletedCount) / float64(res.TotalCount) * 100
	}
	res.CompulsoryMet = !compulsoryMissing

	passed := false
	switch policy {
	case PolicyQuota:
		passed = res.CompletedCount >= QuotaThreshold
	default:
		passed = res.CompulsoryMet
	}

	switch {
	case res.CompletedCount == 0:
		res.Verdict = models.VerdictIncomplete
	case passed:
		res.Verdict = models.VerdictPass
	default:
		res.Verdict = models.VerdictFail
	}

	return res
}

// ValidateCompulsoryCompletion re-checks that every compulsory item across
// all sections is completed, independent of policy. It is the hard gate
// run immediately before a PASS submission is written, so a caller that
// computed PASS incorrectly can never persist an inconsistent record.
// Missing items are reported as "section: item text" labels.
func ValidateCompulsoryCompletion(sections []models.ChecklistSection, completed CompletionSet) (bool, []string) {
	var missing []string
	for _, section := range sections {
		for _, item := range section.Items {
			if item.Compulsory && !completed.Has(item.ID) {
				missing = append(missing, fmt.Sprintf("%s: %s", section.Name, item.Text))
			}
		}
	}
	return len(missing) == 0, missing
}
