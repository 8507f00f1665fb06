package audit

import (
	"time"

	id "dynforms/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events that change or destroy applicant data.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication and access events.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine catalog activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Reason    string
	RequestID string
	// ClientIP is the caller's address when the event came from a request.
	ClientIP string
	// ActorID is set when an admin acts on another user's data.
	ActorID string
}

type AuditEvent string

const (
	// Identity events
	EventUserRegistered AuditEvent = "user_registered"
	EventAdminSeeded    AuditEvent = "admin_seeded"
	EventLoginFailed    AuditEvent = "login_failed"
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginLocked    AuditEvent = "login_locked"

	// Catalog events
	EventTemplateCreated  AuditEvent = "template_created"
	EventTemplateUpdated  AuditEvent = "template_updated"
	EventTemplateDeleted  AuditEvent = "template_deleted"
	EventVersionCreated   AuditEvent = "template_version_created"
	EventVersionUpdated   AuditEvent = "template_version_updated"
	EventVersionPublished AuditEvent = "template_version_published"
	EventVersionDeleted   AuditEvent = "template_version_deleted"

	// Form events
	EventFormCreated AuditEvent = "form_created"
	EventFormUpdated AuditEvent = "form_updated"
	EventFormDeleted AuditEvent = "form_deleted"
	EventStepUpdated AuditEvent = "form_step_upserted"
	EventStepDeleted AuditEvent = "form_step_deleted"

	// Evidence events
	EventDocumentAdded    AuditEvent = "document_added"
	EventDocumentUpdated  AuditEvent = "document_updated"
	EventDocumentDeleted  AuditEvent = "document_deleted"
	EventBiometricAdded   AuditEvent = "biometric_added"
	EventBiometricUpdated AuditEvent = "biometric_updated"
	EventBiometricDeleted AuditEvent = "biometric_deleted"
	EventFileReleased     AuditEvent = "file_released"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserRegistered: CategoryCompliance,
	EventAdminSeeded:    CategorySecurity,
	EventLoginFailed:    CategorySecurity,
	EventLoginSucceeded: CategorySecurity,
	EventLoginLocked:    CategorySecurity,

	EventFormDeleted:      CategoryCompliance,
	EventDocumentAdded:    CategoryCompliance,
	EventDocumentUpdated:  CategoryCompliance,
	EventDocumentDeleted:  CategoryCompliance,
	EventBiometricAdded:   CategoryCompliance,
	EventBiometricUpdated: CategoryCompliance,
	EventBiometricDeleted: CategoryCompliance,
	EventFileReleased:     CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
