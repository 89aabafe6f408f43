package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDirectoryEventRecordsVisibility(t *testing.T) {
	tests := []struct {
		name string
		u    *Utility
		want bool
	}{
		{"verified and active", &Utility{ID: "u1", IsActive: true, Verification: Verified()}, true},
		{"pending", &Utility{ID: "u1", IsActive: true, Verification: Pending()}, false},
		{"rejected", &Utility{ID: "u1", IsActive: true, Verification: Rejected("spam")}, false},
		{"verified but inactive", &Utility{ID: "u1", Verification: Verified()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewDirectoryEvent(tt.u, DirectoryEventUpdated, "actor", nil)
			assert.Equal(t, tt.want, ev.Public)
			assert.Equal(t, "u1", ev.UtilityID)
			assert.NotEmpty(t, ev.ID)
			assert.NoError(t, ev.Validate())
		})
	}
}

func TestDirectoryEventValidate(t *testing.T) {
	var missing *DirectoryEvent
	assert.Error(t, missing.Validate())
	assert.Error(t, (&DirectoryEvent{UtilityID: "u1", Type: DirectoryEventVerified}).Validate())
	assert.Error(t, (&DirectoryEvent{ID: "e1", Type: DirectoryEventVerified}).Validate())
	assert.Error(t, (&DirectoryEvent{ID: "e1", UtilityID: "u1", Type: "renamed"}).Validate())
	assert.NoError(t, (&DirectoryEvent{ID: "e1", UtilityID: "u1", Type: DirectoryEventDeleted}).Validate())
}
