package journey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	note := "weekend trip"
	updated := time.Now().UTC().Truncate(time.Second)
	h := Header{
		ID:          "abc123",
		Revision:    "rev1",
		JourneyDate: 19000,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		UpdatedAt:   &updated,
		Type:        TypeBitmap,
		Kind:        KindFlight{},
		Note:        &note,
	}

	blob, err := EncodeHeader(h)
	require.NoError(t, err)

	decoded, err := DecodeHeader(blob)
	require.NoError(t, err)

	assert.Equal(t, h.ID, decoded.ID)
	assert.Equal(t, h.Revision, decoded.Revision)
	assert.Equal(t, h.JourneyDate, decoded.JourneyDate)
	assert.True(t, h.CreatedAt.Equal(decoded.CreatedAt))
	require.NotNil(t, decoded.UpdatedAt)
	assert.True(t, h.UpdatedAt.Equal(*decoded.UpdatedAt))
	assert.Equal(t, h.Type, decoded.Type)
	assert.True(t, KindsEqual(h.Kind, decoded.Kind))
	require.NotNil(t, decoded.Note)
	assert.Equal(t, note, *decoded.Note)
}

func TestKindEncodedRoundTrip(t *testing.T) {
	cases := []Kind{KindDefault{}, KindFlight{}, KindCustom{Name: "hiking"}}
	for _, k := range cases {
		decoded := DecodeKind(k.Encoded())
		assert.True(t, KindsEqual(k, decoded))
	}
}

func TestDecodeKindUnknownStringBecomesCustom(t *testing.T) {
	k := DecodeKind("something-unexpected")
	custom, ok := k.(KindCustom)
	require.True(t, ok)
	assert.Equal(t, "something-unexpected", custom.Name)
}
