package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

func TestNewEntry(t *testing.T) {
	sub := domain.NewSubmissionID()
	user := domain.UserID(uuid.New())
	now := time.Now()

	tests := []struct {
		name      string
		sub       domain.SubmissionID
		user      domain.UserID
		eventType EventType
		changes   Changes
		wantErr   bool
	}{
		{"matching payload", sub, user, EventApproved, ApprovedChanges{Notes: "ok"}, false},
		{"assigned payload serves reassigned", sub, user, EventReassigned, AssignedChanges{AssignedToID: user}, false},
		{"payload for another event", sub, user, EventApproved, RejectedChanges{Reason: "x"}, true},
		{"unknown event type", sub, user, EventType("archived"), CreatedChanges{}, true},
		{"nil changes", sub, user, EventCreated, nil, true},
		{"nil submission", domain.SubmissionID{}, user, EventCreated, CreatedChanges{}, true},
		{"nil user", sub, domain.UserID{}, EventCreated, CreatedChanges{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEntry(tt.sub, tt.user, tt.eventType, tt.changes, now)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
				assert.Nil(t, e)
				return
			}
			require.NoError(t, err)
			assert.False(t, e.ID.IsNil())
			assert.Equal(t, now, e.Timestamp)
		})
	}
}

func TestDecodeChangesRestoresVariant(t *testing.T) {
	prev := domain.UserID(uuid.New())
	target := domain.UserID(uuid.New())
	original := AssignedChanges{
		AssignedToID:       target,
		AssignedToName:     "Dr Tan",
		AssignedToRole:     domain.RoleDoctor,
		Note:               "please finish vitals",
		PreviousAssigneeID: &prev,
	}

	raw, err := EncodeChanges(original)
	require.NoError(t, err)
	decoded, err := DecodeChanges(EventReassigned, raw)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	_, err = DecodeChanges(EventType("bogus"), raw)
	assert.Error(t, err)
}

func TestEntryJSONUsesEventTypeAsDiscriminator(t *testing.T) {
	e, err := NewEntry(domain.NewSubmissionID(), domain.UserID(uuid.New()), EventUpdated,
		UpdatedChanges{Action: ActionEdited, Fields: []string{"patientName"}, FromStatus: "pending_approval", ToStatus: "draft"},
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"eventType":"updated"`)

	var back Entry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.Changes, back.Changes)
	assert.Equal(t, e.SubmissionID, back.SubmissionID)
	assert.True(t, e.Timestamp.Equal(back.Timestamp))
}
