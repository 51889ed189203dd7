package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patchPayload struct {
	Title      Optional[string] `json:"title"`
	AssignedTo Optional[*int64] `json:"assignedTo"`
}

func TestOptional_UnmarshalJSON(t *testing.T) {
	t.Run("absent keys stay unset", func(t *testing.T) {
		var p patchPayload
		require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
		assert.False(t, p.Title.Set)
		assert.False(t, p.AssignedTo.Set)
	})

	t.Run("explicit null is set with zero value", func(t *testing.T) {
		var p patchPayload
		require.NoError(t, json.Unmarshal([]byte(`{"assignedTo":null}`), &p))
		assert.True(t, p.AssignedTo.Set)
		assert.Nil(t, p.AssignedTo.Value)
	})

	t.Run("values are decoded", func(t *testing.T) {
		var p patchPayload
		require.NoError(t, json.Unmarshal([]byte(`{"title":"VPN down","assignedTo":7}`), &p))
		assert.Equal(t, Some("VPN down"), p.Title)
		require.NotNil(t, p.AssignedTo.Value)
		assert.Equal(t, int64(7), *p.AssignedTo.Value)
	})
}

func TestTicketPatch_IsEmpty(t *testing.T) {
	assert.True(t, TicketPatch{}.IsEmpty())

	version := int64(3)
	assert.True(t, TicketPatch{ExpectedVersion: &version}.IsEmpty(), "a version alone changes nothing")

	assert.False(t, TicketPatch{StatusID: Some(StatusResolved)}.IsEmpty())
	assert.False(t, TicketPatch{AssignedTo: Some[*int64](nil)}.IsEmpty())
}

func TestTicket_HasWatcher(t *testing.T) {
	tk := Ticket{Watchers: []int64{1, 4}}
	assert.True(t, tk.HasWatcher(4))
	assert.False(t, tk.HasWatcher(2))
}
