package engine

import (
	"fmt"
	"regexp"

	"campus-backend/internal/metadata"
)

// MergeParameters overlays supplied runtime parameters onto the report's
// declared defaults (supplied values win) and casts each declared
// parameter to its cast type. Undeclared supplied keys are kept verbatim
// so raw queries can reference them.
func MergeParameters(def *metadata.ReportDefinition, supplied map[string]any) map[string]any {
	merged := make(map[string]any, len(def.DefaultValues)+len(supplied))
	for k, v := range def.DefaultValues {
		merged[k] = v
	}
	for i := range def.Parameters {
		p := &def.Parameters[i]
		if p.DefaultValue != nil {
			if _, ok := merged[p.Key]; !ok {
				merged[p.Key] = p.DefaultValue
			}
		}
	}
	for k, v := range supplied {
		merged[k] = v
	}

	for i := range def.Parameters {
		p := &def.Parameters[i]
		if v, ok := merged[p.Key]; ok {
			merged[p.Key] = CastValue(v, p.CastTo)
		}
	}
	return merged
}

// VisibleParameters returns the parameters whose depends_on conditions hold
// against the current parameter values. Hidden parameters stay declared but
// are not rendered and not validated.
func VisibleParameters(def *metadata.ReportDefinition, params map[string]any) []*metadata.ParameterDefinition {
	var visible []*metadata.ParameterDefinition
	for i := range def.Parameters {
		p := &def.Parameters[i]
		if !p.Visible() {
			continue
		}
		if !EvaluateConditions(p.DependsOn, params) {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}

// ValidateParameters checks required flags and per-parameter validation
// rules against the merged parameter values. Only parameters visible under
// the current values are validated; a parameter hidden by its dependency
// rules cannot block a run.
func ValidateParameters(def *metadata.ReportDefinition, params map[string]any, locale string) []ErrorDetail {
	var errs []ErrorDetail
	for _, p := range VisibleParameters(def, params) {
		value := params[p.Key]

		if p.IsRequired && isEmptyValue(value) {
			errs = append(errs, ErrorDetail{
				Field:   p.Key,
				Rule:    "required",
				Message: fmt.Sprintf("%s is required", p.Label(locale)),
			})
			continue
		}
		if isEmptyValue(value) {
			continue
		}

		for rule, ruleValue := range p.Validation {
			if detail := validateRule(p, value, rule, ruleValue, locale); detail != nil {
				errs = append(errs, *detail)
			}
		}
	}
	return errs
}

func validateRule(p *metadata.ParameterDefinition, value any, rule string, ruleValue any, locale string) *ErrorDetail {
	label := p.Label(locale)

	switch rule {
	case "min":
		num, ok := toFloat64(value)
		threshold, tok := toFloat64(ruleValue)
		if ok && tok && num < threshold {
			return &ErrorDetail{Field: p.Key, Rule: "min",
				Message: fmt.Sprintf("%s must be at least %v", label, ruleValue)}
		}
	case "max":
		num, ok := toFloat64(value)
		threshold, tok := toFloat64(ruleValue)
		if ok && tok && num > threshold {
			return &ErrorDetail{Field: p.Key, Rule: "max",
				Message: fmt.Sprintf("%s must be at most %v", label, ruleValue)}
		}
	case "min_length":
		threshold, tok := toFloat64(ruleValue)
		if tok && len(coerceString(value)) < int(threshold) {
			return &ErrorDetail{Field: p.Key, Rule: "min_length",
				Message: fmt.Sprintf("%s must be at least %v characters", label, ruleValue)}
		}
	case "max_length":
		threshold, tok := toFloat64(ruleValue)
		if tok && len(coerceString(value)) > int(threshold) {
			return &ErrorDetail{Field: p.Key, Rule: "max_length",
				Message: fmt.Sprintf("%s must be at most %v characters", label, ruleValue)}
		}
	case "pattern":
		pattern, ok := ruleValue.(string)
		if !ok {
			return nil
		}
		matched, err := regexp.MatchString(pattern, coerceString(value))
		if err != nil || !matched {
			return &ErrorDetail{Field: p.Key, Rule: "pattern",
				Message: fmt.Sprintf("%s has an invalid format", label)}
		}
	case "in":
		if !looseMember(value, ruleValue) {
			return &ErrorDetail{Field: p.Key, Rule: "in",
				Message: fmt.Sprintf("%s must be one of the allowed values", label)}
		}
	}
	return nil
}
