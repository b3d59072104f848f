// Package rules turns the validation rules of a board template into validators that
// check candidate records against the current registry before they are stored.
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dyluth/democrite/pkg/blackboard"
)

// Validator checks a candidate record against the metadata of every record already on
// the board. It returns nil when the record is acceptable.
type Validator interface {
	Validate(candidate *blackboard.DataRecord, existing []blackboard.RecordMetadata) blackboard.Issue
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(candidate *blackboard.DataRecord, existing []blackboard.RecordMetadata) blackboard.Issue

// Validate calls f.
func (f ValidatorFunc) Validate(candidate *blackboard.DataRecord, existing []blackboard.RecordMetadata) blackboard.Issue {
	return f(candidate, existing)
}

// Null accepts every record.
var Null Validator = ValidatorFunc(func(*blackboard.DataRecord, []blackboard.RecordMetadata) blackboard.Issue {
	return nil
})

// liveRecords returns the records matching pattern that still count as present,
// excluding the candidate itself.
func liveRecords(pattern *regexp.Regexp, candidate *blackboard.DataRecord, existing []blackboard.RecordMetadata) []blackboard.RecordMetadata {
	var out []blackboard.RecordMetadata
	for _, m := range existing {
		if m.UID == candidate.UID {
			continue
		}
		if m.Status.Has(blackboard.RecordStatusDecommissioned) {
			continue
		}
		if !pattern.MatchString(m.LogicalType) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// MaxRecord limits the number of live records whose logical type matches the handler pattern.
type MaxRecord struct {
	rule    blackboard.MaxRecordRule
	pattern *regexp.Regexp
}

// NewMaxRecord builds a MaxRecord validator.
func NewMaxRecord(rule blackboard.MaxRecordRule, pattern *regexp.Regexp) *MaxRecord {
	return &MaxRecord{rule: rule, pattern: pattern}
}

// Validate reports a MaxRecordIssue when storing the candidate would exceed the limit.
func (v *MaxRecord) Validate(candidate *blackboard.DataRecord, existing []blackboard.RecordMetadata) blackboard.Issue {
	live := liveRecords(v.pattern, candidate, existing)
	if len(live)+1 <= v.rule.Max {
		return nil
	}
	return &blackboard.MaxRecordIssue{
		MaxRecordAllow:   v.rule.Max,
		ConflictRecords:  live,
		NewRecord:        candidate,
		Preference:       v.rule.Preference,
		RemovePreference: v.rule.RemovePreference,
	}
}

// TypeCheck requires the payload to be of one JSON kind. Empty slots pass.
type TypeCheck struct {
	kind string
}

// NewTypeCheck builds a TypeCheck validator.
func NewTypeCheck(rule blackboard.TypeCheckRule) *TypeCheck {
	return &TypeCheck{kind: rule.Kind}
}

// Validate reports a DataTypeIssue on kind mismatch.
func (v *TypeCheck) Validate(candidate *blackboard.DataRecord, _ []blackboard.RecordMetadata) blackboard.Issue {
	if !candidate.HasPayload() {
		return nil
	}
	actual := blackboard.PayloadKind(candidate.Payload)
	if actual == v.kind {
		return nil
	}
	return &blackboard.DataTypeIssue{Expected: v.kind, Actual: actual, NewRecord: candidate}
}

// StringRegex requires string payloads to match a pattern.
type StringRegex struct {
	re *regexp.Regexp
}

// NewStringRegex builds a StringRegex validator.
func NewStringRegex(rule blackboard.RegexRule) (*StringRegex, error) {
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile regex rule: %w", err)
	}
	return &StringRegex{re: re}, nil
}

// Validate reports a RegexIssue when the payload does not match.
func (v *StringRegex) Validate(candidate *blackboard.DataRecord, _ []blackboard.RecordMetadata) blackboard.Issue {
	if !candidate.HasPayload() {
		return nil
	}
	s, err := blackboard.ProjectTo[string](candidate.Payload)
	if err != nil {
		return &blackboard.NotSupportedIssue{Reason: "regex rule needs a string payload", NewRecord: candidate}
	}
	if v.re.MatchString(s) {
		return nil
	}
	return &blackboard.RegexIssue{Pattern: v.re.String(), NewRecord: candidate}
}

// Unique forbids two live records of the handler's logical types sharing a display name.
type Unique struct {
	rule    blackboard.UniqueRule
	pattern *regexp.Regexp
}

// NewUnique builds a Unique validator.
func NewUnique(rule blackboard.UniqueRule, pattern *regexp.Regexp) *Unique {
	return &Unique{rule: rule, pattern: pattern}
}

// Validate reports a UniqueIssue listing the records already using the display name.
func (v *Unique) Validate(candidate *blackboard.DataRecord, existing []blackboard.RecordMetadata) blackboard.Issue {
	if candidate.DisplayName == "" {
		return nil
	}
	var conflicts []blackboard.RecordMetadata
	for _, m := range liveRecords(v.pattern, candidate, existing) {
		same := m.DisplayName == candidate.DisplayName
		if v.rule.IgnoreCase {
			same = strings.EqualFold(m.DisplayName, candidate.DisplayName)
		}
		if same {
			conflicts = append(conflicts, m)
		}
	}
	if len(conflicts) == 0 {
		return nil
	}
	return &blackboard.UniqueIssue{ConflictRecords: conflicts, NewRecord: candidate}
}

// NumberRange bounds numeric payloads.
type NumberRange struct {
	rule blackboard.NumberRangeRule
}

// NewNumberRange builds a NumberRange validator.
func NewNumberRange(rule blackboard.NumberRangeRule) *NumberRange {
	return &NumberRange{rule: rule}
}

// Validate reports a NumberRangeIssue when the payload is out of bounds.
func (v *NumberRange) Validate(candidate *blackboard.DataRecord, _ []blackboard.RecordMetadata) blackboard.Issue {
	if !candidate.HasPayload() {
		return nil
	}
	value, err := blackboard.ProjectTo[float64](candidate.Payload)
	if err != nil {
		return &blackboard.NotSupportedIssue{Reason: "number range rule needs a numeric payload", NewRecord: candidate}
	}
	if (v.rule.Min != nil && value < *v.rule.Min) || (v.rule.Max != nil && value > *v.rule.Max) {
		return &blackboard.NumberRangeIssue{Min: v.rule.Min, Max: v.rule.Max, Value: value, NewRecord: candidate}
	}
	return nil
}
