// Package sync implements the activity synchronization engine: reconcile
// fetched Strava activities against the Notion destination and apply the
// resulting writes.
package sync

import (
	"github.com/exaphy/stravasync/internal/notion"
	"github.com/exaphy/stravasync/internal/strava"
)

// DecisionKind classifies what the executor should do with one activity.
type DecisionKind string

const (
	DecisionCreate DecisionKind = "create"
	DecisionUpdate DecisionKind = "update"
	DecisionSkip   DecisionKind = "skip"
)

// Decision is the reconciler's verdict for a single source activity. Exactly
// one decision is produced per activity per run.
type Decision struct {
	Kind       DecisionKind
	ExternalID string
	Fields     notion.Fields
	// PageID is the destination page to patch; set on updates only.
	PageID string
	// Reason explains a skip.
	Reason string
}

// Reconcile diffs source activities against the destination index. It
// performs no I/O and is deterministic: the same inputs always produce the
// same decisions in the same order.
func Reconcile(activities []strava.Activity, index *notion.Index) []Decision {
	decisions := make([]Decision, 0, len(activities))

	for _, a := range activities {
		fields := notion.FieldsFromActivity(a)

		existing, ok := index.Lookup(a.ID)
		if !ok {
			decisions = append(decisions, Decision{
				Kind:       DecisionCreate,
				ExternalID: a.ID,
				Fields:     fields,
			})
			continue
		}

		if existing.Fields != fields {
			decisions = append(decisions, Decision{
				Kind:       DecisionUpdate,
				ExternalID: a.ID,
				Fields:     fields,
				PageID:     existing.PageID,
			})
			continue
		}

		decisions = append(decisions, Decision{
			Kind:       DecisionSkip,
			ExternalID: a.ID,
			Fields:     fields,
			Reason:     "unchanged",
		})
	}

	return decisions
}
