package models

import (
	"time"

	id "dynforms/pkg/domain"
	"dynforms/pkg/email"
)

type CreateInstanceRequest struct {
	TemplateID      id.TemplateID `json:"template_id"`
	TemplateVersion *int          `json:"template_version,omitempty"`
	Email           *string       `json:"email,omitempty"`
	Phone           *string       `json:"phone,omitempty"`
	Country         *string       `json:"country,omitempty"`
}

// Contact validates and normalises the applicant contact fields.
func (r CreateInstanceRequest) Contact() (Contact, error) {
	addr, err := email.NormalizeOptional(r.Email)
	if err != nil {
		return Contact{}, err
	}
	return Contact{Email: addr, PhoneE164: r.Phone, Country: r.Country}, nil
}

type UpdateInstanceRequest struct {
	Status         *string    `json:"status,omitempty"`
	AssigneeUserID *id.UserID `json:"assignee_user_id,omitempty"`
	Email          *string    `json:"email,omitempty"`
	PhoneE164      *string    `json:"phone_e164,omitempty"`
	Country        *string    `json:"country,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
}

// ToPatch parses the request into a patch. Status must be in the closed set.
// A blank email, phone or country clears the stored value.
func (r UpdateInstanceRequest) ToPatch() (InstancePatch, error) {
	p := InstancePatch{
		AssigneeUserID: r.AssigneeUserID,
		PhoneE164:      r.PhoneE164,
		Country:        r.Country,
		SubmittedAt:    r.SubmittedAt,
	}
	if r.Status != nil {
		status, err := ParseInstanceStatus(*r.Status)
		if err != nil {
			return InstancePatch{}, err
		}
		p.Status = &status
	}
	addr, err := email.NormalizeOptional(r.Email)
	if err != nil {
		return InstancePatch{}, err
	}
	if addr == nil && r.Email != nil {
		// blank clears, like phone and country
		addr = new(string)
	}
	p.Email = addr
	return p, nil
}

type UpsertStepRequest struct {
	DataJSON string `json:"data_json"`
}
