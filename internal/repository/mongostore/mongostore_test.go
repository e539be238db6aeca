package mongostore

import (
	"context"
	"testing"

	"github.com/pr0br0/cyboard/internal/repository"
	"github.com/pr0br0/cyboard/internal/repository/repotest"
	"github.com/pr0br0/cyboard/internal/utils"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMongostore(t *testing.T) {
	repotest.Run(t, func(t *testing.T) *repository.Store {
		database := utils.SetupTestDB(t, "cyboard_test",
			usersCollection, categoriesCollection, listingsCollection,
			notificationsCollection, messagesCollection, cascadesCollection,
		)
		require.NoError(t, EnsureIndexes(context.Background(), database, zap.NewNop()))
		return New(database)
	})
}
