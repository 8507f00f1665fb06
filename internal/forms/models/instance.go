package models

import (
	"strings"
	"time"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
)

// FormInstance is one applicant's submission, bound at creation to a single
// published template version. TemplateID and TemplateVersion never change.
type FormInstance struct {
	ID              id.InstanceID  `json:"instance_id"`
	TemplateID      id.TemplateID  `json:"template_id"`
	TemplateVersion int            `json:"template_version"`
	AssigneeUserID  *id.UserID     `json:"assignee_user_id,omitempty"`
	Status          InstanceStatus `json:"status"`
	Email           *string        `json:"email,omitempty"`
	PhoneE164       *string        `json:"phone_e164,omitempty"`
	Country         *string        `json:"country,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	SubmittedAt     *time.Time     `json:"submitted_at,omitempty"`
}

// Contact carries the optional applicant contact fields.
type Contact struct {
	Email     *string
	PhoneE164 *string
	Country   *string
}

// NewFormInstance starts an in-progress instance assigned to assignee.
func NewFormInstance(instanceID id.InstanceID, templateID id.TemplateID, version int, assignee id.UserID, contact Contact, now time.Time) (*FormInstance, error) {
	if version < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "template version must be positive")
	}
	if err := validatePhone(contact.PhoneE164); err != nil {
		return nil, err
	}
	fi := &FormInstance{
		ID:              instanceID,
		TemplateID:      templateID,
		TemplateVersion: version,
		Status:          StatusInProgress,
		Email:           contact.Email,
		PhoneE164:       trimmed(contact.PhoneE164),
		Country:         trimmed(contact.Country),
		StartedAt:       now,
	}
	if !assignee.IsNil() {
		fi.AssigneeUserID = &assignee
	}
	return fi, nil
}

// InstancePatch holds the fields of a partial update. Nil means untouched.
type InstancePatch struct {
	Status         *InstanceStatus
	AssigneeUserID *id.UserID
	Email          *string
	PhoneE164      *string
	Country        *string
	SubmittedAt    *time.Time
}

// Apply validates p against the status machine and writes it. An explicit
// SubmittedAt wins; otherwise the first move to submitted stamps now.
func (fi *FormInstance) Apply(p InstancePatch, now time.Time) error {
	if p.Status != nil && !fi.Status.CanTransitionTo(*p.Status) {
		return dErrors.New(dErrors.CodeConflict,
			"cannot move form from "+fi.Status.String()+" to "+p.Status.String())
	}
	if err := validatePhone(p.PhoneE164); err != nil {
		return err
	}

	if p.Status != nil {
		fi.Status = *p.Status
	}
	if p.AssigneeUserID != nil {
		assignee := *p.AssigneeUserID
		fi.AssigneeUserID = &assignee
	}
	if p.Email != nil {
		fi.Email = trimmed(p.Email)
	}
	if p.PhoneE164 != nil {
		fi.PhoneE164 = trimmed(p.PhoneE164)
	}
	if p.Country != nil {
		fi.Country = trimmed(p.Country)
	}

	switch {
	case p.SubmittedAt != nil:
		at := p.SubmittedAt.UTC()
		fi.SubmittedAt = &at
	case p.Status != nil && *p.Status == StatusSubmitted && fi.SubmittedAt == nil:
		at := now
		fi.SubmittedAt = &at
	}
	return nil
}

// validatePhone accepts E.164: a '+' followed by 8 to 15 digits.
func validatePhone(phone *string) error {
	if phone == nil {
		return nil
	}
	p := strings.TrimSpace(*phone)
	if p == "" {
		return nil
	}
	digits := strings.TrimPrefix(p, "+")
	if digits == p || len(digits) < 8 || len(digits) > 15 || digits[0] == '0' {
		return dErrors.New(dErrors.CodeInvalidInput, "phone must be in E.164 format")
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return dErrors.New(dErrors.CodeInvalidInput, "phone must be in E.164 format")
		}
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
