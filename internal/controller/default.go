package controller

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/dyluth/democrite/pkg/blackboard"
	"github.com/google/uuid"
)

// DefaultName is the controller name used when a template binds no controller.
const DefaultName = "default"

// Option keys understood by the default controller.
const (
	OptionResolution       = "resolution"
	OptionRemoveResolution = "remove_resolution"
)

// DefaultOptions is the persisted configuration of a default controller.
type DefaultOptions struct {
	Resolution       blackboard.ResolutionMode   `json:"resolution"`
	RemoveResolution blackboard.RemoveResolution `json:"remove_resolution"`
}

// Default resolves record limit issues and leaves every other hook to Base.
type Default struct {
	Base
	opts DefaultOptions
}

// NewDefault creates a default controller.
func NewDefault(deps Deps) Controller {
	return &Default{Base: Base{State: deps.State, Clock: deps.Clock}}
}

// Initialize validates the options and persists them.
func (c *Default) Initialize(ctx context.Context, board blackboard.BoardID, options map[string]string) error {
	if err := c.Base.Initialize(ctx, board, options); err != nil {
		return err
	}

	opts := DefaultOptions{
		Resolution:       blackboard.ResolutionMode(c.Option(OptionResolution, string(blackboard.ResolutionReject))),
		RemoveResolution: blackboard.RemoveResolution(c.Option(OptionRemoveResolution, string(blackboard.RemoveResolutionRemove))),
	}
	if err := opts.Resolution.Validate(); err != nil {
		return err
	}
	if err := opts.RemoveResolution.Validate(); err != nil {
		return err
	}
	c.opts = opts

	if c.State != nil {
		return c.State.Save(ctx, &c.opts)
	}
	return nil
}

// ResolvePushIssue handles MaxRecordIssue. Other issue kinds get no remediation.
func (c *Default) ResolvePushIssue(ctx context.Context, issue blackboard.Issue, candidate *blackboard.DataRecord) ([]blackboard.Command, error) {
	if issue == nil || candidate == nil {
		return nil, nil
	}

	limit, ok := issue.(*blackboard.MaxRecordIssue)
	if !ok {
		log.Printf("[Controller] Default controller cannot resolve %s issue for record %s", issue.Kind(), candidate.UID)
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.resolveLimit(limit, candidate), nil
}

func (c *Default) resolveLimit(issue *blackboard.MaxRecordIssue, candidate *blackboard.DataRecord) []blackboard.Command {
	mode := issue.Preference
	if mode == "" {
		mode = c.opts.Resolution
	}
	if mode == "" || mode == blackboard.ResolutionReject {
		return nil
	}

	// A waiting preparation slot takes the new payload instead of a new record.
	for _, slot := range issue.ConflictRecords {
		if slot.Status == blackboard.RecordStatusPreparation && slot.LogicalType == candidate.LogicalType {
			filled := *candidate
			filled.UID = slot.UID
			filled.CreatedAt = slot.CreatedAt
			filled.CreatorIdentity = slot.CreatorIdentity
			return []blackboard.Command{&blackboard.AddRecordCommand{Record: &filled, InsertIfNew: true, Override: true}}
		}
	}

	type entry struct {
		uid       uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	}
	all := make([]entry, 0, len(issue.ConflictRecords)+1)
	for _, r := range issue.ConflictRecords {
		all = append(all, entry{r.UID, r.CreatedAt, r.UpdatedAt})
	}
	all = append(all, entry{candidate.UID, candidate.CreatedAt, candidate.UpdatedAt})

	keep := func(less func(a, b entry) bool) []uuid.UUID {
		sort.SliceStable(all, func(i, j int) bool { return less(all[i], all[j]) })
		var out []uuid.UUID
		for i := issue.MaxRecordAllow; i < len(all); i++ {
			out = append(out, all[i].uid)
		}
		return out
	}

	var toRemove []uuid.UUID
	switch mode {
	case blackboard.ResolutionClearAll:
		for _, r := range issue.ConflictRecords {
			toRemove = append(toRemove, r.UID)
		}
	case blackboard.ResolutionKeepNewest:
		toRemove = keep(func(a, b entry) bool { return a.createdAt.After(b.createdAt) })
	case blackboard.ResolutionKeepNewestUpdated:
		toRemove = keep(func(a, b entry) bool { return a.updatedAt.After(b.updatedAt) })
	case blackboard.ResolutionKeepOldest:
		toRemove = keep(func(a, b entry) bool { return a.createdAt.Before(b.createdAt) })
	case blackboard.ResolutionKeepOldestUpdated:
		toRemove = keep(func(a, b entry) bool { return a.updatedAt.Before(b.updatedAt) })
	default:
		log.Printf("[Controller] Resolution mode %q not supported for record %s", mode, candidate.UID)
		return nil
	}

	// A zero limit leaves no room for the candidate even after clearing.
	addNew := !(mode == blackboard.ResolutionClearAll && issue.MaxRecordAllow == 0)
	for _, uid := range toRemove {
		if uid == candidate.UID {
			addNew = false
			break
		}
	}

	var actions []blackboard.Command
	if addNew {
		removeMode := issue.RemovePreference
		if removeMode == "" {
			removeMode = c.opts.RemoveResolution
		}
		for _, uid := range toRemove {
			actions = append(actions, blackboard.NewRemoveCommand(uid, removeMode))
		}
		actions = append(actions, &blackboard.AddRecordCommand{Record: candidate, InsertIfNew: true, Override: true})
	}

	if len(actions) == 0 {
		actions = append(actions, &blackboard.RejectCommand{Issue: issue})
	}
	return actions
}
