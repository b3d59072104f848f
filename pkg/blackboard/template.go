package blackboard

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// DefaultLogicalTypePattern matches every logical type.
const DefaultLogicalTypePattern = ".*"

// Template declares how boards built from it behave. Boards copy their template at
// build time, so later template edits never reach an already built board.
type Template struct {
	UID            uuid.UUID           `json:"uid" yaml:"uid"`
	UniqueName     string              `json:"unique_name" yaml:"unique_name"`
	Controllers    []ControllerBinding `json:"controllers,omitempty" yaml:"controllers,omitempty"`
	DefaultStorage StorageConfig       `json:"default_storage" yaml:"default_storage"`
	LogicalTypes   []LogicalTypeRule   `json:"logical_types,omitempty" yaml:"logical_types,omitempty"`
}

// ControllerKind is the role a controller plays for a board.
type ControllerKind string

const (
	ControllerStorage ControllerKind = "storage"
	ControllerEvent   ControllerKind = "event"
	ControllerState   ControllerKind = "state"
)

// Validate checks if the ControllerKind is a valid enum value.
func (k ControllerKind) Validate() error {
	switch k {
	case ControllerStorage, ControllerEvent, ControllerState:
		return nil
	default:
		return fmt.Errorf("unknown controller kind: %q", k)
	}
}

// ControllerBinding attaches a named controller implementation to a controller kind.
type ControllerBinding struct {
	Kind    ControllerKind    `json:"kind" yaml:"kind"`
	Name    string            `json:"name" yaml:"name"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// StorageConfig selects the repository records are written to.
type StorageConfig struct {
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// ValidationMode combines the rules of a group.
type ValidationMode string

const (
	ValidationAll        ValidationMode = "All"
	ValidationAtLeastOne ValidationMode = "AtLeastOne"
	ValidationNoOne      ValidationMode = "NoOne"
)

// Validate checks if the ValidationMode is a valid enum value. Empty means All.
func (m ValidationMode) Validate() error {
	switch m {
	case "", ValidationAll, ValidationAtLeastOne, ValidationNoOne:
		return nil
	default:
		return fmt.Errorf("unknown validation mode: %q", m)
	}
}

// LogicalTypeRule is one rule bound to the logical types matching Pattern. Rules sharing
// a pattern are grouped into a single logical type handler. A rule sets exactly one of
// the configuration fields (Order, Storage, RemainOnSealed) or validation fields
// (MaxRecord, TypeCheck, Regex, Unique, NumberRange).
type LogicalTypeRule struct {
	Pattern string         `json:"pattern" yaml:"pattern"`
	Group   string         `json:"group,omitempty" yaml:"group,omitempty"`
	Mode    ValidationMode `json:"mode,omitempty" yaml:"mode,omitempty"`

	Order          *int           `json:"order,omitempty" yaml:"order,omitempty"`
	Storage        *StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	RemainOnSealed *bool          `json:"remain_on_sealed,omitempty" yaml:"remain_on_sealed,omitempty"`

	MaxRecord   *MaxRecordRule   `json:"max_record,omitempty" yaml:"max_record,omitempty"`
	TypeCheck   *TypeCheckRule   `json:"type_check,omitempty" yaml:"type_check,omitempty"`
	Regex       *RegexRule       `json:"regex,omitempty" yaml:"regex,omitempty"`
	Unique      *UniqueRule      `json:"unique,omitempty" yaml:"unique,omitempty"`
	NumberRange *NumberRangeRule `json:"number_range,omitempty" yaml:"number_range,omitempty"`
}

// MaxRecordRule caps the number of live records of the logical type.
type MaxRecordRule struct {
	Max              int              `json:"max" yaml:"max"`
	Preference       ResolutionMode   `json:"preference,omitempty" yaml:"preference,omitempty"`
	RemovePreference RemoveResolution `json:"remove_preference,omitempty" yaml:"remove_preference,omitempty"`
}

// TypeCheckRule requires the payload JSON kind (string, number, bool, object, array).
type TypeCheckRule struct {
	Kind string `json:"kind" yaml:"kind"`
}

// RegexRule requires string payloads to match Pattern.
type RegexRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
}

// UniqueRule forbids two live records of the logical type sharing a display name.
type UniqueRule struct {
	IgnoreCase bool `json:"ignore_case,omitempty" yaml:"ignore_case,omitempty"`
}

// NumberRangeRule bounds numeric payloads. Nil bounds are open.
type NumberRangeRule struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// PayloadKinds lists the kinds accepted by TypeCheckRule.
var PayloadKinds = []string{"string", "number", "bool", "object", "array"}

// EffectivePattern returns the rule pattern, defaulting to DefaultLogicalTypePattern.
func (r *LogicalTypeRule) EffectivePattern() string {
	if r.Pattern == "" {
		return DefaultLogicalTypePattern
	}
	return r.Pattern
}

// IsValidation reports whether the rule constrains records (as opposed to configuring
// the handler).
func (r *LogicalTypeRule) IsValidation() bool {
	return r.MaxRecord != nil || r.TypeCheck != nil || r.Regex != nil || r.Unique != nil || r.NumberRange != nil
}

// Validate checks the rule is well formed.
func (r *LogicalTypeRule) Validate() error {
	if _, err := regexp.Compile(r.EffectivePattern()); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
	}
	if err := r.Mode.Validate(); err != nil {
		return err
	}

	set := 0
	for _, present := range []bool{
		r.Order != nil, r.Storage != nil, r.RemainOnSealed != nil,
		r.MaxRecord != nil, r.TypeCheck != nil, r.Regex != nil, r.Unique != nil, r.NumberRange != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("rule for pattern %q must set exactly one field, got %d", r.EffectivePattern(), set)
	}

	switch {
	case r.MaxRecord != nil:
		if r.MaxRecord.Max < 0 {
			return fmt.Errorf("max_record.max must be >= 0, got %d", r.MaxRecord.Max)
		}
		if r.MaxRecord.Preference != "" {
			if err := r.MaxRecord.Preference.Validate(); err != nil {
				return err
			}
		}
		if r.MaxRecord.RemovePreference != "" {
			if err := r.MaxRecord.RemovePreference.Validate(); err != nil {
				return err
			}
		}
	case r.TypeCheck != nil:
		if !isPayloadKind(r.TypeCheck.Kind) {
			return fmt.Errorf("type_check.kind must be one of %v, got %q", PayloadKinds, r.TypeCheck.Kind)
		}
	case r.Regex != nil:
		if _, err := regexp.Compile(r.Regex.Pattern); err != nil {
			return fmt.Errorf("invalid regex rule %q: %w", r.Regex.Pattern, err)
		}
	case r.NumberRange != nil:
		if r.NumberRange.Min != nil && r.NumberRange.Max != nil && *r.NumberRange.Min > *r.NumberRange.Max {
			return fmt.Errorf("number_range.min must be <= max")
		}
	}
	return nil
}

func isPayloadKind(kind string) bool {
	for _, k := range PayloadKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Validate checks the template and every rule it declares.
func (t *Template) Validate() error {
	if t.UniqueName == "" {
		return fmt.Errorf("template unique_name cannot be empty")
	}
	for i, c := range t.Controllers {
		if err := c.Kind.Validate(); err != nil {
			return fmt.Errorf("controller %d: %w", i, err)
		}
	}
	for i := range t.LogicalTypes {
		if err := t.LogicalTypes[i].Validate(); err != nil {
			return fmt.Errorf("logical type rule %d: %w", i, err)
		}
	}
	return nil
}

// Clone deep copies the template so a board can freeze it.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t

	out.Controllers = make([]ControllerBinding, len(t.Controllers))
	for i, c := range t.Controllers {
		out.Controllers[i] = c
		if c.Options != nil {
			opts := make(map[string]string, len(c.Options))
			for k, v := range c.Options {
				opts[k] = v
			}
			out.Controllers[i].Options = opts
		}
	}

	out.LogicalTypes = make([]LogicalTypeRule, len(t.LogicalTypes))
	for i, r := range t.LogicalTypes {
		out.LogicalTypes[i] = r.clone()
	}
	return &out
}

func (r LogicalTypeRule) clone() LogicalTypeRule {
	out := r
	if r.Order != nil {
		v := *r.Order
		out.Order = &v
	}
	if r.Storage != nil {
		v := *r.Storage
		out.Storage = &v
	}
	if r.RemainOnSealed != nil {
		v := *r.RemainOnSealed
		out.RemainOnSealed = &v
	}
	if r.MaxRecord != nil {
		v := *r.MaxRecord
		out.MaxRecord = &v
	}
	if r.TypeCheck != nil {
		v := *r.TypeCheck
		out.TypeCheck = &v
	}
	if r.Regex != nil {
		v := *r.Regex
		out.Regex = &v
	}
	if r.Unique != nil {
		v := *r.Unique
		out.Unique = &v
	}
	if r.NumberRange != nil {
		v := NumberRangeRule{}
		if r.NumberRange.Min != nil {
			m := *r.NumberRange.Min
			v.Min = &m
		}
		if r.NumberRange.Max != nil {
			m := *r.NumberRange.Max
			v.Max = &m
		}
		out.NumberRange = &v
	}
	return out
}

// RulesByPattern groups the template rules by effective pattern, keeping declaration order.
func (t *Template) RulesByPattern() (patterns []string, rules map[string][]LogicalTypeRule) {
	rules = make(map[string][]LogicalTypeRule)
	for _, r := range t.LogicalTypes {
		p := r.EffectivePattern()
		if _, ok := rules[p]; !ok {
			patterns = append(patterns, p)
		}
		rules[p] = append(rules[p], r)
	}
	return patterns, rules
}

// Binding returns the last controller binding declared for kind.
func (t *Template) Binding(kind ControllerKind) (ControllerBinding, bool) {
	var (
		found   ControllerBinding
		present bool
	)
	for _, c := range t.Controllers {
		if c.Kind == kind {
			found = c
			present = true
		}
	}
	return found, present
}
