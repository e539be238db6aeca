package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pr0br0/cyboard/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func duplicateKeyError(key string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.listings index: slug_1 dup key: { : \"%s\" }", key),
	}}}
}

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetries(func() error { calls++; return nil }, 3, IsMongoDuplicateKeyError)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_FailureNonDuplicateKey(t *testing.T) {
	calls := 0
	expected := errors.New("some other error")
	err := WithRetries(func() error { calls++; return expected }, 3, IsMongoDuplicateKeyError)

	assert.ErrorIs(t, err, expected)
	assert.Equal(t, 1, calls)
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	calls := 0
	err := WithRetries(func() error {
		calls++
		return duplicateKeyError("iphone-13")
	}, 2, IsMongoDuplicateKeyError)

	require.Error(t, err)
	assert.True(t, IsMongoDuplicateKeyError(err))
	assert.Equal(t, 3, calls)
}

func TestWithRetries_CollisionResolves(t *testing.T) {
	originalHook := utils.NewSixIDHook
	defer func() { utils.NewSixIDHook = originalHook }()

	id1 := utils.SixID{1, 2, 3, 4, 5, 1}
	id2 := utils.SixID{1, 2, 3, 4, 5, 2}
	queue := []utils.SixID{id1, id1, id2}
	hookCalls := 0
	utils.NewSixIDHook = func() (utils.SixID, bool) {
		if hookCalls < len(queue) {
			id := queue[hookCalls]
			hookCalls++
			return id, true
		}
		return utils.SixID{}, false
	}

	inserted := map[utils.SixID]bool{id1: true}
	calls := 0
	err := WithRetries(func() error {
		calls++
		id := utils.NewSixID()
		if inserted[id] {
			return duplicateKeyError(id.String())
		}
		inserted[id] = true
		return nil
	}, 3, IsMongoDuplicateKeyError)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, hookCalls)
	assert.True(t, inserted[id2])
	assert.Len(t, inserted, 2)
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	assert.False(t, IsMongoDuplicateKeyError(nil))
	assert.False(t, IsMongoDuplicateKeyError(errors.New("boom")))
	assert.True(t, IsMongoDuplicateKeyError(fmt.Errorf("insert: %w", duplicateKeyError("x"))))
	assert.True(t, IsMongoDuplicateKeyError(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Code: 11000}}},
	}))
}
