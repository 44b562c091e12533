package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/events"
	"wayfare/internal/models"
)

func TestAddNotificationNormalizesScope(t *testing.T) {
	env := newSettleEnv(t)
	ctx := context.Background()

	n, err := env.feeds.Add(ctx, "customer:Ana@Example.COM", "Welcome aboard")
	require.NoError(t, err)
	assert.Equal(t, "customer:ana@example.com", n.Scope)

	feed, err := env.feeds.List(ctx, "customer:ANA@example.com")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Welcome aboard", feed[0].Title)
	assert.False(t, feed[0].Read)
}

func TestAddNotificationValidation(t *testing.T) {
	env := newSettleEnv(t)
	ctx := context.Background()

	_, err := env.feeds.Add(ctx, "", "no scope")
	assert.True(t, IsValidation(err))

	_, err = env.feeds.Add(ctx, models.ScopeAdmin, "")
	assert.True(t, IsValidation(err))
}

func TestFeedKeepsMostRecentUpToCap(t *testing.T) {
	env := newSettleEnv(t)
	feeds := NewNotificationService(env.db, env.bus, env.coord, 3, env.feeds.log)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := feeds.Add(ctx, models.ScopeAdmin, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}

	feed, err := feeds.List(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, "message 5", feed[0].Title)
	assert.Equal(t, "message 4", feed[1].Title)
	assert.Equal(t, "message 3", feed[2].Title)
}

func TestNotificationChangesAreSignalled(t *testing.T) {
	env := newSettleEnv(t)
	ctx := context.Background()

	var scopes []string
	env.bus.Subscribe(events.EventNotificationsChange, func(e *events.Event) error {
		var p events.FeedEventPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		scopes = append(scopes, p.Scope)
		return nil
	})

	_, err := env.feeds.Add(ctx, models.ScopeAdmin, "first")
	require.NoError(t, err)
	require.NoError(t, env.feeds.MarkAllRead(ctx, models.ScopeAdmin))

	assert.Equal(t, []string{models.ScopeAdmin, models.ScopeAdmin}, scopes)
}

func TestMarkAllReadScopedToFeed(t *testing.T) {
	env := newSettleEnv(t)
	ctx := context.Background()

	_, err := env.feeds.Add(ctx, models.ScopeAdmin, "back office")
	require.NoError(t, err)
	_, err = env.feeds.Add(ctx, "customer:ana@example.com", "your trip")
	require.NoError(t, err)

	require.NoError(t, env.feeds.MarkAllRead(ctx, models.ScopeAdmin))

	adminFeed, err := env.feeds.List(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	require.Len(t, adminFeed, 1)
	assert.True(t, adminFeed[0].Read)

	customerFeed, err := env.feeds.List(ctx, "customer:ana@example.com")
	require.NoError(t, err)
	require.Len(t, customerFeed, 1)
	assert.False(t, customerFeed[0].Read)
}

func TestNotifyBookingWritesBothFeeds(t *testing.T) {
	env := newSettleEnv(t)
	ctx := context.Background()
	booking := env.createBooking(t, "ana@example.com")

	env.feeds.NotifyBooking(ctx, booking, "Your booking is in", "New booking arrived")

	customerFeed, err := env.feeds.List(ctx, models.CustomerScope("ana@example.com"))
	require.NoError(t, err)
	require.Len(t, customerFeed, 1)
	assert.Equal(t, "Your booking is in", customerFeed[0].Title)

	adminFeed, err := env.feeds.List(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	require.Len(t, adminFeed, 1)
	assert.Equal(t, "New booking arrived", adminFeed[0].Title)
}
