package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dynforms/pkg/domain"
	dErrors "dynforms/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newInstance(t *testing.T) *FormInstance {
	t.Helper()
	fi, err := NewFormInstance(id.InstanceID(uuid.New()), id.TemplateID(uuid.New()), 1,
		id.UserID(uuid.New()), Contact{}, now)
	require.NoError(t, err)
	return fi
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to InstanceStatus
		allowed  bool
	}{
		{StatusInProgress, StatusSubmitted, true},
		{StatusInProgress, StatusAbandoned, true},
		{StatusInProgress, StatusApproved, false},
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusSubmitted, StatusAbandoned, true},
		{StatusSubmitted, StatusInProgress, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusAbandoned, false},
		{StatusAbandoned, StatusInProgress, false},
		{StatusApproved, StatusApproved, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusInProgress.IsTerminal())
	assert.False(t, StatusSubmitted.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusAbandoned.IsTerminal())
	assert.False(t, InstanceStatus("canceled").IsTerminal())
}

func TestParseInstanceStatus(t *testing.T) {
	s, err := ParseInstanceStatus(" Submitted ")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, s)

	_, err = ParseInstanceStatus("canceled")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNewFormInstance(t *testing.T) {
	fi := newInstance(t)
	assert.Equal(t, StatusInProgress, fi.Status)
	assert.Equal(t, now, fi.StartedAt)
	assert.Nil(t, fi.SubmittedAt)
	require.NotNil(t, fi.AssigneeUserID)

	_, err := NewFormInstance(id.InstanceID(uuid.New()), id.TemplateID(uuid.New()), 1,
		id.UserID(uuid.New()), Contact{PhoneE164: ptr("555-1234")}, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestApply(t *testing.T) {
	t.Run("submit stamps submitted_at once", func(t *testing.T) {
		fi := newInstance(t)
		require.NoError(t, fi.Apply(InstancePatch{Status: ptr(StatusSubmitted)}, now))
		require.NotNil(t, fi.SubmittedAt)
		assert.Equal(t, now, *fi.SubmittedAt)

		later := now.Add(time.Hour)
		require.NoError(t, fi.Apply(InstancePatch{Status: ptr(StatusSubmitted)}, later))
		assert.Equal(t, now, *fi.SubmittedAt, "same-state write keeps the first stamp")
	})

	t.Run("explicit submitted_at wins", func(t *testing.T) {
		fi := newInstance(t)
		explicit := now.Add(-24 * time.Hour)
		require.NoError(t, fi.Apply(InstancePatch{Status: ptr(StatusSubmitted), SubmittedAt: &explicit}, now))
		assert.Equal(t, explicit, *fi.SubmittedAt)
	})

	t.Run("absent fields are untouched", func(t *testing.T) {
		fi := newInstance(t)
		fi.Email = ptr("a@example.com")
		require.NoError(t, fi.Apply(InstancePatch{Country: ptr(" NZ ")}, now))
		assert.Equal(t, "a@example.com", *fi.Email)
		assert.Equal(t, "NZ", *fi.Country)
		assert.Equal(t, StatusInProgress, fi.Status)
	})

	t.Run("disallowed transition is a conflict and writes nothing", func(t *testing.T) {
		fi := newInstance(t)
		err := fi.Apply(InstancePatch{Status: ptr(StatusApproved), Country: ptr("NZ")}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, StatusInProgress, fi.Status)
		assert.Nil(t, fi.Country)
	})

	t.Run("blank contact fields clear the stored values", func(t *testing.T) {
		fi := newInstance(t)
		require.NoError(t, fi.Apply(InstancePatch{
			Email: ptr("a@example.com"), PhoneE164: ptr("+6421555123"), Country: ptr("NZ"),
		}, now))

		p, err := UpdateInstanceRequest{Email: ptr(" "), PhoneE164: ptr(""), Country: ptr("")}.ToPatch()
		require.NoError(t, err)
		require.NoError(t, fi.Apply(p, now))
		assert.Nil(t, fi.Email)
		assert.Nil(t, fi.PhoneE164)
		assert.Nil(t, fi.Country)
	})

	t.Run("valid phone", func(t *testing.T) {
		fi := newInstance(t)
		require.NoError(t, fi.Apply(InstancePatch{PhoneE164: ptr("+6421555123")}, now))
		assert.Equal(t, "+6421555123", *fi.PhoneE164)
	})
}

func TestUpdateRequestToPatch(t *testing.T) {
	_, err := UpdateInstanceRequest{Status: ptr("canceled")}.ToPatch()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = UpdateInstanceRequest{Email: ptr("not-an-email")}.ToPatch()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	p, err := UpdateInstanceRequest{Status: ptr("APPROVED"), Email: ptr("X@Example.com")}.ToPatch()
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, *p.Status)
	assert.Equal(t, "x@example.com", *p.Email)

	p, err = UpdateInstanceRequest{}.ToPatch()
	require.NoError(t, err)
	assert.Nil(t, p.Email, "absent email leaves the stored one alone")

	c, err := CreateInstanceRequest{Email: ptr("")}.Contact()
	require.NoError(t, err)
	assert.Nil(t, c.Email)
}

func TestStepOrderFor(t *testing.T) {
	assert.Equal(t, 1, StepOrderFor("personal_info"))
	assert.Equal(t, 2, StepOrderFor("identity_documents"))
	assert.Equal(t, 3, StepOrderFor("biometric"))
	assert.Equal(t, UnknownStepOrder, StepOrderFor("employment"))
}

func TestStepResponse(t *testing.T) {
	_, err := NewStepResponse(id.StepResponseID(uuid.New()), id.InstanceID(uuid.New()), "biometric", "{oops", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	step, err := NewStepResponse(id.StepResponseID(uuid.New()), id.InstanceID(uuid.New()), "biometric", `{"a":1}`, now)
	require.NoError(t, err)
	assert.Equal(t, 3, step.StepOrder)

	later := now.Add(time.Minute)
	require.NoError(t, step.Replace(`{"a":2}`, later))
	assert.Equal(t, `{"a":2}`, step.DataJSON)
	assert.Equal(t, later, step.UpdatedAt)
	assert.Equal(t, now, step.CreatedAt)
	assert.Equal(t, 3, step.StepOrder)

	require.Error(t, step.Replace("", later))
	assert.Equal(t, `{"a":2}`, step.DataJSON)
}

func TestParseStepKey(t *testing.T) {
	key, err := ParseStepKey(" personal_info ")
	require.NoError(t, err)
	assert.Equal(t, "personal_info", key)

	_, err = ParseStepKey("  ")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
