package rules

import (
	"fmt"
	"regexp"

	"github.com/dyluth/democrite/pkg/blackboard"
)

// Group combines validators with a validation mode.
//
//   - All: every validator must accept the record
//   - AtLeastOne: one accepting validator is enough
//   - NoOne: every validator must reject the record
type Group struct {
	Name       string
	Mode       blackboard.ValidationMode
	Validators []Validator
}

// Validate applies the group mode. Under All a single failing validator returns its
// own issue so controllers can resolve it directly.
func (g *Group) Validate(candidate *blackboard.DataRecord, existing []blackboard.RecordMetadata) blackboard.Issue {
	var issues []blackboard.Issue
	for _, v := range g.Validators {
		if issue := v.Validate(candidate, existing); issue != nil {
			issues = append(issues, issue)
		}
	}

	mode := g.Mode
	if mode == "" {
		mode = blackboard.ValidationAll
	}

	switch mode {
	case blackboard.ValidationAtLeastOne:
		if len(issues) < len(g.Validators) {
			return nil
		}
	case blackboard.ValidationNoOne:
		if len(issues) == len(g.Validators) {
			return nil
		}
		return &blackboard.AggregateIssue{Group: g.Name, Mode: string(mode), Issues: issues}
	default:
		if len(issues) == 0 {
			return nil
		}
		if len(issues) == 1 {
			return issues[0]
		}
	}
	return &blackboard.AggregateIssue{Group: g.Name, Mode: string(mode), Issues: issues}
}

// Provider builds the validator of a logical type handler from its rules.
type Provider struct{}

// NewProvider returns the default rule provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Build compiles the validation rules of one pattern, anchored like the logical type
// handlers anchor it. Configuration rules (order, storage, remain on sealed) are
// ignored. Rules sharing a group name and mode are combined into one Group; the
// resulting groups must all pass.
func (p *Provider) Build(pattern string, rules []blackboard.LogicalTypeRule) (Validator, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("failed to compile logical type pattern %q: %w", pattern, err)
	}

	type groupKey struct {
		name string
		mode blackboard.ValidationMode
	}

	var (
		order  []groupKey
		groups = make(map[groupKey][]Validator)
	)

	for _, rule := range rules {
		if !rule.IsValidation() {
			continue
		}
		v, err := p.buildOne(re, rule)
		if err != nil {
			return nil, err
		}
		key := groupKey{name: rule.Group, mode: rule.Mode}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], v)
	}

	built := make([]Validator, 0, len(order))
	for _, key := range order {
		vs := groups[key]
		if len(vs) == 1 && (key.mode == "" || key.mode == blackboard.ValidationAll) {
			built = append(built, vs[0])
			continue
		}
		built = append(built, &Group{Name: key.name, Mode: key.mode, Validators: vs})
	}

	switch len(built) {
	case 0:
		return Null, nil
	case 1:
		return built[0], nil
	default:
		return &Group{Mode: blackboard.ValidationAll, Validators: built}, nil
	}
}

func (p *Provider) buildOne(pattern *regexp.Regexp, rule blackboard.LogicalTypeRule) (Validator, error) {
	switch {
	case rule.MaxRecord != nil:
		return NewMaxRecord(*rule.MaxRecord, pattern), nil
	case rule.TypeCheck != nil:
		return NewTypeCheck(*rule.TypeCheck), nil
	case rule.Regex != nil:
		return NewStringRegex(*rule.Regex)
	case rule.Unique != nil:
		return NewUnique(*rule.Unique, pattern), nil
	case rule.NumberRange != nil:
		return NewNumberRange(*rule.NumberRange), nil
	default:
		return nil, fmt.Errorf("rule for pattern %q is not supported", pattern)
	}
}
