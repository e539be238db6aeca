package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr0br0/cyboard/internal/events"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/utils"
)

func TestMessageService_SendToListingAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	cat := env.createCategory(t, "Furniture", nil)
	l := env.createListing(t, seller, cat.ID, "Oak dining table", 250)

	m, err := env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Body: "  Is it still available?  "})
	require.NoError(t, err)
	assert.Equal(t, seller.ID, m.Recipient)
	assert.Equal(t, "Is it still available?", m.Body)

	page, err := env.notifications.List(ctx, seller.ID, false, 1, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.NotificationNewMessage, page.Items[0].Type)
	assert.Contains(t, page.Items[0].Message.En, "Oak dining table")
	assert.Contains(t, env.events.Subjects(), events.SubjectMessageSent)
}

func TestMessageService_SendValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	cat := env.createCategory(t, "Furniture", nil)
	l := env.createListing(t, seller, cat.ID, "Oak dining table", 250)

	var ve *ValidationError
	_, err := env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Body: "   "})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "body")

	_, err = env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Body: strings.Repeat("я", models.MessageMaxLen+1)})
	require.ErrorAs(t, err, &ve)

	_, err = env.messages.Send(ctx, seller.ID, MessageInput{Listing: l.ID, Body: "hello me"})
	assert.ErrorIs(t, err, ErrSelfMessage)

	_, err = env.messages.Send(ctx, buyer.ID, MessageInput{Listing: utils.NewSixID(), Body: "hello"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Recipient: utils.NewSixID(), Body: "hello"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.listings.Delete(ctx, actorOf(seller), l.ID))
	_, err = env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Body: "hello"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessageService_ConversationsAndThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	other := env.createUser(t, "other@example.com", models.RoleUser)
	cat := env.createCategory(t, "Furniture", nil)
	l := env.createListing(t, seller, cat.ID, "Oak dining table", 250)

	_, err := env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Body: "Hi"})
	require.NoError(t, err)
	_, err = env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Body: "Still there?"})
	require.NoError(t, err)
	_, err = env.messages.Send(ctx, seller.ID, MessageInput{Listing: l.ID, Recipient: buyer.ID, Body: "Yes"})
	require.NoError(t, err)
	_, err = env.messages.Send(ctx, other.ID, MessageInput{Listing: l.ID, Body: "Price?"})
	require.NoError(t, err)

	unread, err := env.messages.UnreadCount(ctx, seller.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	convs, err := env.messages.Conversations(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	byPeer := map[utils.SixID]ConversationView{}
	for _, c := range convs {
		byPeer[c.Peer] = c
	}
	require.Contains(t, byPeer, buyer.ID)
	assert.Equal(t, 2, byPeer[buyer.ID].UnreadCount)
	require.NotNil(t, byPeer[buyer.ID].PeerUser)
	assert.Equal(t, buyer.Name, byPeer[buyer.ID].PeerUser.Name)

	thread, err := env.messages.Thread(ctx, seller.ID, buyer.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, thread.Items, 3)
	assert.Equal(t, "Hi", thread.Items[0].Body)
	assert.Equal(t, DefaultThreadPageSize, thread.Pagination.PerPage)

	unread, err = env.messages.UnreadCount(ctx, seller.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread, "reading a thread marks its incoming messages read")

	marked, err := env.messages.MarkRead(ctx, seller.ID, other.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)
}

func TestMessageService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seller := env.createUser(t, "seller@example.com", models.RoleUser)
	buyer := env.createUser(t, "buyer@example.com", models.RoleUser)
	stranger := env.createUser(t, "stranger@example.com", models.RoleUser)
	cat := env.createCategory(t, "Furniture", nil)
	l := env.createListing(t, seller, cat.ID, "Oak dining table", 250)

	m, err := env.messages.Send(ctx, buyer.ID, MessageInput{Listing: l.ID, Body: "Hi"})
	require.NoError(t, err)

	assert.ErrorIs(t, env.messages.Delete(ctx, stranger.ID, m.ID), ErrForbidden)
	require.NoError(t, env.messages.Delete(ctx, seller.ID, m.ID))
	assert.ErrorIs(t, env.messages.Delete(ctx, buyer.ID, m.ID), ErrNotFound)
}
