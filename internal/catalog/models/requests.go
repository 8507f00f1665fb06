package models

// CreateTemplateRequest is the input of CreateTemplate.
type CreateTemplateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedBy   *string `json:"created_by,omitempty"`
}

// UpdateTemplateRequest is a partial update; nil fields are left untouched.
type UpdateTemplateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// ToPatch parses the status into the closed enum.
func (r UpdateTemplateRequest) ToPatch() (TemplatePatch, error) {
	p := TemplatePatch{Name: r.Name, Description: r.Description}
	if r.Status != nil {
		status, err := ParseTemplateStatus(*r.Status)
		if err != nil {
			return TemplatePatch{}, err
		}
		p.Status = &status
	}
	return p, nil
}

// CreateVersionRequest is the input of CreateVersion.
type CreateVersionRequest struct {
	DesignJSON string  `json:"design_json"`
	JSONSchema *string `json:"json_schema,omitempty"`
	CreatedBy  *string `json:"created_by,omitempty"`
}

// UpdateVersionRequest is a partial update; nil fields are left untouched.
type UpdateVersionRequest struct {
	DesignJSON *string `json:"design_json,omitempty"`
	JSONSchema *string `json:"json_schema,omitempty"`
}
