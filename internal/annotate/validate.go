package annotate

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	lerrors "lore/internal/errors"
	"lore/internal/schema"
)

// validateInput enforces the structural requirements on a write: non-empty
// summary, described markers, complete decisions, ordered line ranges.
// Failure is a hard rejection before any persistence attempt; the error
// carries field-level reasons.
func validateInput(in Input) error {
	errs := validation.Errors{}

	if err := validation.Validate(in.Narrative.Summary,
		validation.Required.Error("cannot be blank")); err != nil {
		errs["narrative.summary"] = err
	}
	for i, alt := range in.Narrative.Alternatives {
		if err := validation.Validate(alt.Approach, validation.Required); err != nil {
			errs[fmt.Sprintf("narrative.alternatives[%d].approach", i)] = err
		}
	}

	for i, m := range in.Markers {
		mergePrefixed(errs, fmt.Sprintf("markers[%d]", i), validateMarker(m))
	}
	for i, d := range in.Decisions {
		mergePrefixed(errs, fmt.Sprintf("decisions[%d]", i), validateDecision(d))
	}

	if in.Effort != nil {
		if err := validation.Validate(in.Effort.TaskID, validation.Required); err != nil {
			errs["effort.taskId"] = err
		}
	}

	if len(errs) > 0 {
		return lerrors.New(lerrors.ValidationFailed,
			"annotation input is invalid: "+errs.Error(), nil).WithDetails(errs)
	}
	return nil
}

// validateMarker checks one marker's structural rules, keyed by field name.
func validateMarker(m schema.Marker) validation.Errors {
	errs := validation.Errors{}

	if err := validation.Validate(m.Kind,
		validation.Required,
		validation.In(schema.MarkerContract, schema.MarkerHazard, schema.MarkerDependency,
			schema.MarkerUnstable, schema.MarkerDeprecated).
			Error("must be contract, hazard, dependency, unstable, or deprecated")); err != nil {
		errs["kind"] = err
	}
	if err := validation.Validate(m.Description,
		validation.Required.Error("cannot be blank")); err != nil {
		errs["description"] = err
	}
	if m.Lines != nil && !m.Lines.Valid() {
		errs["lines"] = validation.NewError("validation_line_range",
			"start must be positive and must not exceed end")
	}
	if m.Basis != "" {
		if err := validation.Validate(m.Basis,
			validation.In(schema.BasisStated, schema.BasisInferred, schema.BasisTested).
				Error("must be stated, inferred, or tested")); err != nil {
			errs["basis"] = err
		}
	}
	if m.Kind == schema.MarkerDependency {
		if m.Target == nil || m.Target.File == "" {
			errs["target.file"] = validation.NewError("validation_dependency_target",
				"dependency markers must name the file they depend on")
		}
	}
	return errs
}

// validateDecision requires both halves of the record and a known
// stability grade.
func validateDecision(d schema.Decision) validation.Errors {
	errs := validation.Errors{}

	if err := validation.Validate(d.What,
		validation.Required.Error("cannot be blank")); err != nil {
		errs["what"] = err
	}
	if err := validation.Validate(d.Why,
		validation.Required.Error("cannot be blank")); err != nil {
		errs["why"] = err
	}
	if d.Stability != "" {
		if err := validation.Validate(d.Stability,
			validation.In(schema.StabilityPermanent, schema.StabilityProvisional, schema.StabilityExperimental).
				Error("must be permanent, provisional, or experimental")); err != nil {
			errs["stability"] = err
		}
	}
	return errs
}

// validateCorrection checks a correction before it is appended.
func validateCorrection(c schema.Correction) error {
	errs := validation.Errors{}

	if err := validation.Validate(c.Field, validation.Required.Error("cannot be blank")); err != nil {
		errs["field"] = err
	}
	if err := validation.Validate(c.NewValue, validation.Required.Error("cannot be blank")); err != nil {
		errs["newValue"] = err
	}
	if err := validation.Validate(c.Reason, validation.Required.Error("cannot be blank")); err != nil {
		errs["reason"] = err
	}

	if len(errs) > 0 {
		return lerrors.New(lerrors.ValidationFailed,
			"correction is invalid: "+errs.Error(), nil).WithDetails(errs)
	}
	return nil
}

// mergePrefixed folds nested errors into the top-level map as
// "prefix.field" keys.
func mergePrefixed(into validation.Errors, prefix string, nested validation.Errors) {
	for field, err := range nested {
		into[prefix+"."+field] = err
	}
}
