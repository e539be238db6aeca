package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSixID_StringRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewSixID()
		s := id.String()
		require.Len(t, s, 10)

		parsed, err := ParseSixID(s)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseSixID_Lenient(t *testing.T) {
	id := NewSixID()
	s := id.String()

	lower, err := ParseSixID(toLowerASCII(s))
	require.NoError(t, err)
	assert.Equal(t, id, lower)

	hyphenated, err := ParseSixID(s[:5] + "-" + s[5:])
	require.NoError(t, err)
	assert.Equal(t, id, hyphenated)
}

func TestParseSixID_Invalid(t *testing.T) {
	cases := []string{"", "short", "ABCDEFGHJKM", "ABCDEFGHU0", "ZZZZZZZZZZ"}
	for _, c := range cases {
		_, err := ParseSixID(c)
		assert.ErrorIs(t, err, ErrInvalidSixID, c)
	}
}

func TestSixID_JSON(t *testing.T) {
	type doc struct {
		ID     SixID  `json:"id"`
		Parent *SixID `json:"parent,omitempty"`
	}
	id := NewSixID()
	data, err := json.Marshal(doc{ID: id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(data))

	var back doc
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back.ID)
	assert.Nil(t, back.Parent)
}

func TestSixID_BSON(t *testing.T) {
	type doc struct {
		ID     SixID   `bson:"_id"`
		Parent *SixID  `bson:"parent"`
		Refs   []SixID `bson:"refs"`
	}
	id, parent := NewSixID(), NewSixID()
	in := doc{ID: id, Parent: &parent, Refs: []SixID{NewSixID(), NewSixID()}}

	raw, err := bson.Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	var generic bson.M
	require.NoError(t, bson.Unmarshal(raw, &generic))
	assert.NotNil(t, generic["_id"])
}

func TestSixID_BSONNullParent(t *testing.T) {
	type doc struct {
		Parent *SixID `bson:"parent"`
	}
	raw, err := bson.Marshal(bson.M{"parent": nil})
	require.NoError(t, err)

	var out doc
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.Nil(t, out.Parent)
}

func TestNewSixIDHook(t *testing.T) {
	fixed := MustParseSixID("0123456780")
	NewSixIDHook = func() (SixID, bool) { return fixed, true }
	defer func() { NewSixIDHook = nil }()

	assert.Equal(t, fixed, NewSixID())
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
