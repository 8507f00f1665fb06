package models

import (
	"time"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
	"dynforms/pkg/jsondoc"
)

// TemplateVersion is a numbered snapshot of a template's design.
//
// Invariants:
//   - Version starts at 1 and is max+1 per template
//   - IsPublished only ever moves false -> true
//   - DesignJSON and JSONSchema are frozen once published
type TemplateVersion struct {
	ID          id.TemplateVersionID `json:"template_version_id"`
	TemplateID  id.TemplateID        `json:"template_id"`
	Version     int                  `json:"version"`
	IsPublished bool                 `json:"is_published"`
	DesignJSON  string               `json:"design_json"`
	JSONSchema  *string              `json:"json_schema,omitempty"`
	CreatedBy   *string              `json:"created_by,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewTemplateVersion builds an unpublished version. The version number is
// assigned by the store inside the creating transaction.
func NewTemplateVersion(versionID id.TemplateVersionID, templateID id.TemplateID, version int, designJSON string, jsonSchema, createdBy *string, now time.Time) (*TemplateVersion, error) {
	if version < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "version must be at least 1")
	}
	if err := jsondoc.Require("design_json", designJSON); err != nil {
		return nil, err
	}
	if err := jsondoc.RequireOptional("json_schema", jsonSchema); err != nil {
		return nil, err
	}
	return &TemplateVersion{
		ID:         versionID,
		TemplateID: templateID,
		Version:    version,
		DesignJSON: designJSON,
		JSONSchema: jsonSchema,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// VersionPatch carries the fields of a partial version update.
type VersionPatch struct {
	DesignJSON *string
	JSONSchema *string
}

// CanEdit refuses edits once the version is published.
func (v *TemplateVersion) CanEdit() error {
	if v.IsPublished {
		return dErrors.New(dErrors.CodeConflict, "published versions are frozen; create a new version instead")
	}
	return nil
}

// Apply validates and replaces only the fields present in p.
func (v *TemplateVersion) Apply(p VersionPatch, now time.Time) error {
	if err := v.CanEdit(); err != nil {
		return err
	}
	if err := jsondoc.RequireOptional("design_json", p.DesignJSON); err != nil {
		return err
	}
	if err := jsondoc.RequireOptional("json_schema", p.JSONSchema); err != nil {
		return err
	}
	if p.DesignJSON != nil {
		v.DesignJSON = *p.DesignJSON
	}
	if p.JSONSchema != nil {
		v.JSONSchema = p.JSONSchema
	}
	v.UpdatedAt = now
	return nil
}

// Publish marks the version published. Publishing twice is a no-op and
// reports false.
func (v *TemplateVersion) Publish(now time.Time) bool {
	if v.IsPublished {
		return false
	}
	v.IsPublished = true
	v.UpdatedAt = now
	return true
}
