// Package template loads and validates the JSON org templates that drive
// greenfield creation and adoption runs.
package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Billing types accepted by the control plane.
const (
	BillingEvaluation   = "EVALUATION"
	BillingPAYG         = "PAYG"
	BillingSubscription = "SUBSCRIPTION"
)

// Template describes the desired shape of an Apigee organization. The DRZ
// flag (data residency zone) flips which region fields are required and
// which are forbidden.
type Template struct {
	BillingType          string `json:"billing_type" validate:"omitempty,oneof=EVALUATION PAYG SUBSCRIPTION"`
	DRZ                  bool   `json:"drz"`
	AnalyticsRegion      string `json:"analytics_region"`
	RuntimeLocation      string `json:"runtime_location"`
	ControlPlaneLocation string `json:"control_plane_location"`
	ConsumerDataRegion   string `json:"consumer_data_region"`
	InstanceName         string `json:"instance_name"`
}

// ValidationError reports a template that failed schema validation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

var (
	validateOnce sync.Once
	validateInst *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterStructValidation(residencyRules, Template{})
		validateInst = v
	})
	return validateInst
}

// residencyRules enforces the mutual-exclusion matrix between standard and
// data-residency templates.
func residencyRules(sl validator.StructLevel) {
	t := sl.Current().Interface().(Template)

	if t.DRZ {
		if t.AnalyticsRegion != "" {
			sl.ReportError(t.AnalyticsRegion, "analytics_region", "AnalyticsRegion", "drz_excluded", "")
		}
		if t.ControlPlaneLocation == "" {
			sl.ReportError(t.ControlPlaneLocation, "control_plane_location", "ControlPlaneLocation", "drz_required", "")
		}
		if t.ConsumerDataRegion == "" {
			sl.ReportError(t.ConsumerDataRegion, "consumer_data_region", "ConsumerDataRegion", "drz_required", "")
		}
		if t.BillingType == BillingEvaluation {
			sl.ReportError(t.BillingType, "billing_type", "BillingType", "drz_billing", "")
		}
	} else {
		if t.ControlPlaneLocation != "" {
			sl.ReportError(t.ControlPlaneLocation, "control_plane_location", "ControlPlaneLocation", "standard_excluded", "")
		}
		if t.ConsumerDataRegion != "" {
			sl.ReportError(t.ConsumerDataRegion, "consumer_data_region", "ConsumerDataRegion", "standard_excluded", "")
		}
		if t.AnalyticsRegion == "" {
			sl.ReportError(t.AnalyticsRegion, "analytics_region", "AnalyticsRegion", "standard_required", "")
		}
	}
	if t.RuntimeLocation == "" {
		sl.ReportError(t.RuntimeLocation, "runtime_location", "RuntimeLocation", "required", "")
	}
}

// Validate checks the template against the schema rules and returns a
// ValidationError describing the first-seen violations.
func (t *Template) Validate() error {
	err := validatorInstance().Struct(t)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Msg: err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeViolation(fe, t.DRZ))
	}
	return &ValidationError{Msg: strings.Join(msgs, "; ")}
}

func describeViolation(fe validator.FieldError, drz bool) string {
	switch fe.Tag() {
	case "drz_excluded":
		return fmt.Sprintf("'%s' must not be set when drz=true, use 'consumer_data_region'", fe.Field())
	case "drz_required":
		return fmt.Sprintf("'%s' is required when drz=true", fe.Field())
	case "drz_billing":
		return "'billing_type' cannot be EVALUATION when drz=true, use PAYG or SUBSCRIPTION"
	case "standard_excluded":
		return fmt.Sprintf("'%s' is only allowed when drz=true", fe.Field())
	case "standard_required":
		return fmt.Sprintf("'%s' is required when drz=false", fe.Field())
	case "required":
		return fmt.Sprintf("'%s' is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("'%s' must be one of EVALUATION, PAYG, SUBSCRIPTION", fe.Field())
	default:
		return fmt.Sprintf("'%s' failed %s validation", fe.Field(), fe.Tag())
	}
}

// Load reads a template file, rejecting unknown fields, applying defaults and
// running schema validation.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	t := &Template{BillingType: BillingEvaluation}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(t); err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid template %s: %v", filepath.Base(path), err)}
	}
	if t.BillingType == "" {
		t.BillingType = BillingEvaluation
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Resolve locates a template by name. Search order: absolute path, the
// working directory, <dir>/templates, then the packaged templates directory
// next to the terraform modules. A .json suffix is appended when missing.
func Resolve(name, workDir, packageDir string) (string, error) {
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}

	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("template file not found: %s", name)
		}
		return name, nil
	}

	candidates := []string{
		filepath.Join(workDir, name),
		filepath.Join(workDir, "templates", name),
		filepath.Join(packageDir, "templates", name),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("template %q not found in: %s", name, strings.Join(candidates, ", "))
}

// Vars converts the template to the terraform variable map for a project.
// Empty fields are omitted so downstream resolution can distinguish "unset"
// from "set to empty".
func (t *Template) Vars(projectID string) map[string]string {
	vars := map[string]string{
		"gcp_project_id": projectID,
	}
	if t.BillingType != "" {
		vars["apigee_billing_type"] = t.BillingType
	}
	if t.InstanceName != "" {
		vars["apigee_instance_name"] = t.InstanceName
	}
	if t.AnalyticsRegion != "" {
		vars["apigee_analytics_region"] = t.AnalyticsRegion
	}
	if t.RuntimeLocation != "" {
		vars["apigee_runtime_location"] = t.RuntimeLocation
	}
	if t.ControlPlaneLocation != "" {
		vars["control_plane_location"] = t.ControlPlaneLocation
	}
	if t.ConsumerDataRegion != "" {
		vars["consumer_data_region"] = t.ConsumerDataRegion
	}
	return vars
}
