package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "examflow/pkg/domain-errors"
)

// TestParseUUID_Invariants checks that IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSubmissionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseClinicID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
		assert.False(t, id.IsNil())
	})
}

func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"sql injection", "'; DROP TABLE submissions;--"},
		{"null byte suffix", "550e8400-e29b-41d4-a716-446655440000\x00x"},
		{"oversized input", strings.Repeat("a", 10000)},
		{"whitespace only", "   "},
		{"path traversal", "../../etc/passwd"},
	}

	parsers := map[string]func(string) error{
		"user":       func(s string) error { _, err := ParseUserID(s); return err },
		"clinic":     func(s string) error { _, err := ParseClinicID(s); return err },
		"submission": func(s string) error { _, err := ParseSubmissionID(s); return err },
		"audit":      func(s string) error { _, err := ParseAuditEntryID(s); return err },
	}

	for _, tt := range tests {
		for name, parse := range parsers {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				err := parse(tt.input)
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			})
		}
	}
}

func TestIDs_JSONUsesCanonicalString(t *testing.T) {
	raw := uuid.New()
	payload := struct {
		ID SubmissionID `json:"id"`
	}{ID: SubmissionID(raw)}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+raw.String()+`"}`, string(data))

	var decoded struct {
		ID SubmissionID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload.ID, decoded.ID)
}

func TestNewIDsAreUnique(t *testing.T) {
	a, b := NewSubmissionID(), NewSubmissionID()
	assert.NotEqual(t, a, b)
	assert.False(t, NewAuditEntryID().IsNil())
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"nurse", "doctor", "admin"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, s, r.String())
	}

	_, err := ParseRole("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = ParseRole("Doctor")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	assert.True(t, RoleNurse.CanBeAssigned())
	assert.True(t, RoleDoctor.CanBeAssigned())
	assert.False(t, RoleAdmin.CanBeAssigned())
}
