package models

import (
	"strings"
	"time"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
)

// TemplateStatus is catalog metadata. It is independent of the per-version
// publish flag and may move freely between its three values.
type TemplateStatus string

const (
	TemplateStatusDraft     TemplateStatus = "draft"
	TemplateStatusPublished TemplateStatus = "published"
	TemplateStatusArchived  TemplateStatus = "archived"
)

func (s TemplateStatus) IsValid() bool {
	switch s {
	case TemplateStatusDraft, TemplateStatusPublished, TemplateStatusArchived:
		return true
	}
	return false
}

func (s TemplateStatus) String() string { return string(s) }

// ParseTemplateStatus rejects anything outside the closed set.
func ParseTemplateStatus(s string) (TemplateStatus, error) {
	status := TemplateStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status must be one of draft, published, archived")
	}
	return status, nil
}

const maxTemplateNameLength = 200

// Template is a reusable form definition container.
type Template struct {
	ID          id.TemplateID  `json:"template_id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Status      TemplateStatus `json:"status"`
	CreatedBy   *string        `json:"created_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewTemplate builds a draft template.
func NewTemplate(templateID id.TemplateID, name string, description, createdBy *string, now time.Time) (*Template, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	return &Template{
		ID:          templateID,
		Name:        name,
		Description: description,
		Status:      TemplateStatusDraft,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// TemplatePatch carries the fields of a partial template update.
type TemplatePatch struct {
	Name        *string
	Description *string
	Status      *TemplateStatus
}

// Apply replaces only the fields present in p.
func (t *Template) Apply(p TemplatePatch, now time.Time) error {
	if p.Name != nil {
		name, err := validateName(*p.Name)
		if err != nil {
			return err
		}
		t.Name = name
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.Status != nil {
		if !p.Status.IsValid() {
			return dErrors.New(dErrors.CodeInvalidInput, "status must be one of draft, published, archived")
		}
		t.Status = *p.Status
	}
	t.UpdatedAt = now
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if len(name) > maxTemplateNameLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "name must be at most 200 characters")
	}
	return name, nil
}
