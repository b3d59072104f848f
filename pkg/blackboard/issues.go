package blackboard

import (
	"fmt"
	"strings"
)

// Issue is a problem detected before a record is written. Storage controllers turn
// issues into remediation commands. The set of issue kinds is closed.
type Issue interface {
	// Kind names the issue for logs and metrics.
	Kind() string
	// Describe renders a human readable explanation.
	Describe() string
	isIssue()
}

// ResolutionMode selects how a storage controller resolves a record limit issue.
type ResolutionMode string

const (
	ResolutionReject            ResolutionMode = "Reject"
	ResolutionClearAll          ResolutionMode = "ClearAll"
	ResolutionKeepNewest        ResolutionMode = "KeepNewest"
	ResolutionKeepNewestUpdated ResolutionMode = "KeepNewestUpdated"
	ResolutionKeepOldest        ResolutionMode = "KeepOldest"
	ResolutionKeepOldestUpdated ResolutionMode = "KeepOldestUpdated"
)

// Validate checks if the ResolutionMode is a valid enum value.
func (m ResolutionMode) Validate() error {
	switch m {
	case ResolutionReject, ResolutionClearAll, ResolutionKeepNewest, ResolutionKeepNewestUpdated,
		ResolutionKeepOldest, ResolutionKeepOldestUpdated:
		return nil
	default:
		return fmt.Errorf("unknown resolution mode: %q", m)
	}
}

// RemoveResolution selects how records sorted out by a resolution are dropped.
type RemoveResolution string

const (
	RemoveResolutionRemove       RemoveResolution = "Remove"
	RemoveResolutionDecommission RemoveResolution = "Decommission"
)

// Validate checks if the RemoveResolution is a valid enum value.
func (r RemoveResolution) Validate() error {
	switch r {
	case RemoveResolutionRemove, RemoveResolutionDecommission:
		return nil
	default:
		return fmt.Errorf("unknown remove resolution: %q", r)
	}
}

// ConflictIssue: the candidate uid is already stored and the push does not allow override.
type ConflictIssue struct {
	ConflictRecords []RecordMetadata `json:"conflict_records"`
	NewRecord       *DataRecord      `json:"new_record"`
}

// MaxRecordIssue: storing the candidate would exceed the logical type record limit.
type MaxRecordIssue struct {
	MaxRecordAllow   int              `json:"max_record_allow"`
	ConflictRecords  []RecordMetadata `json:"conflict_records"`
	NewRecord        *DataRecord      `json:"new_record"`
	Preference       ResolutionMode   `json:"preference,omitempty"`
	RemovePreference RemoveResolution `json:"remove_preference,omitempty"`
}

// UniqueIssue: another live record of the logical type has the same display name.
type UniqueIssue struct {
	ConflictRecords []RecordMetadata `json:"conflict_records"`
	NewRecord       *DataRecord      `json:"new_record"`
}

// RegexIssue: a string payload does not match the required pattern.
type RegexIssue struct {
	Pattern   string      `json:"pattern"`
	NewRecord *DataRecord `json:"new_record"`
}

// NumberRangeIssue: a numeric payload falls outside [Min, Max].
type NumberRangeIssue struct {
	Min       *float64    `json:"min,omitempty"`
	Max       *float64    `json:"max,omitempty"`
	Value     float64     `json:"value"`
	NewRecord *DataRecord `json:"new_record"`
}

// DataTypeIssue: the payload kind differs from the one the logical type accepts.
type DataTypeIssue struct {
	Expected  string      `json:"expected"`
	Actual    string      `json:"actual"`
	NewRecord *DataRecord `json:"new_record"`
}

// AggregateIssue groups the issues of a rule group.
type AggregateIssue struct {
	Group  string  `json:"group,omitempty"`
	Mode   string  `json:"mode"`
	Issues []Issue `json:"-"`
}

// NotSupportedIssue: a rule could not be evaluated against the candidate.
type NotSupportedIssue struct {
	Reason    string      `json:"reason"`
	NewRecord *DataRecord `json:"new_record"`
}

func (*ConflictIssue) Kind() string     { return "Conflict" }
func (*MaxRecordIssue) Kind() string    { return "MaxRecord" }
func (*UniqueIssue) Kind() string       { return "Unique" }
func (*RegexIssue) Kind() string        { return "StringRegex" }
func (*NumberRangeIssue) Kind() string  { return "NumberRange" }
func (*DataTypeIssue) Kind() string     { return "DataType" }
func (*AggregateIssue) Kind() string    { return "Aggregate" }
func (*NotSupportedIssue) Kind() string { return "NotSupported" }

func (*ConflictIssue) isIssue()     {}
func (*MaxRecordIssue) isIssue()    {}
func (*UniqueIssue) isIssue()       {}
func (*RegexIssue) isIssue()        {}
func (*NumberRangeIssue) isIssue()  {}
func (*DataTypeIssue) isIssue()     {}
func (*AggregateIssue) isIssue()    {}
func (*NotSupportedIssue) isIssue() {}

func (i *ConflictIssue) Describe() string {
	return fmt.Sprintf("record %s already exists", i.NewRecord.UID)
}

func (i *MaxRecordIssue) Describe() string {
	return fmt.Sprintf("logical type %q allows %d records, %d already stored",
		i.NewRecord.LogicalType, i.MaxRecordAllow, len(i.ConflictRecords))
}

func (i *UniqueIssue) Describe() string {
	return fmt.Sprintf("display name %q already used by %d record(s) of %q",
		i.NewRecord.DisplayName, len(i.ConflictRecords), i.NewRecord.LogicalType)
}

func (i *RegexIssue) Describe() string {
	return fmt.Sprintf("payload does not match %q", i.Pattern)
}

func (i *NumberRangeIssue) Describe() string {
	return fmt.Sprintf("value %v out of range [%s, %s]", i.Value, boundString(i.Min), boundString(i.Max))
}

func (i *DataTypeIssue) Describe() string {
	return fmt.Sprintf("expected payload of kind %s, got %s", i.Expected, i.Actual)
}

func (i *AggregateIssue) Describe() string {
	parts := make([]string, 0, len(i.Issues))
	for _, sub := range i.Issues {
		parts = append(parts, sub.Describe())
	}
	return fmt.Sprintf("%s rule group %q failed: %s", i.Mode, i.Group, strings.Join(parts, "; "))
}

func (i *NotSupportedIssue) Describe() string {
	return "rule not supported: " + i.Reason
}

func boundString(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%v", *v)
}
