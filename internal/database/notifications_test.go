package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfare/internal/models"
)

func addNotification(t *testing.T, db *DB, scope, id, title string, cap int) {
	t.Helper()
	err := db.AddNotification(context.Background(), &models.Notification{
		ID:    id,
		Scope: scope,
		Title: title,
	}, cap)
	require.NoError(t, err)
}

func TestFeedIsCappedAndMostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const cap = 3
	for i := 1; i <= 5; i++ {
		addNotification(t, db, models.ScopeAdmin, fmt.Sprintf("n%d", i), fmt.Sprintf("event %d", i), cap)
	}

	feed, err := db.ListNotifications(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	require.Len(t, feed, cap)

	assert.Equal(t, "n5", feed[0].ID)
	assert.Equal(t, "n4", feed[1].ID)
	assert.Equal(t, "n3", feed[2].ID)
}

func TestFeedsAreScopedIndependently(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	customer := models.CustomerScope("Ana@Example.com")
	addNotification(t, db, models.ScopeAdmin, "a1", "admin event", 20)
	addNotification(t, db, customer, "c1", "customer event", 20)

	adminFeed, err := db.ListNotifications(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	require.Len(t, adminFeed, 1)
	assert.Equal(t, "a1", adminFeed[0].ID)

	customerFeed, err := db.ListNotifications(ctx, "customer:ana@example.com")
	require.NoError(t, err)
	require.Len(t, customerFeed, 1)
	assert.Equal(t, "c1", customerFeed[0].ID)
}

func TestListNotificationsUnknownScopeIsEmpty(t *testing.T) {
	db := setupTestDB(t)

	feed, err := db.ListNotifications(context.Background(), "customer:nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, feed)
	assert.Empty(t, feed)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	addNotification(t, db, models.ScopeAdmin, "n1", "one", 20)
	addNotification(t, db, models.ScopeAdmin, "n2", "two", 20)
	addNotification(t, db, "customer:ana@example.com", "n1", "other scope", 20)

	require.NoError(t, db.MarkAllNotificationsRead(ctx, models.ScopeAdmin))

	adminFeed, err := db.ListNotifications(ctx, models.ScopeAdmin)
	require.NoError(t, err)
	for _, n := range adminFeed {
		assert.True(t, n.Read)
	}

	customerFeed, err := db.ListNotifications(ctx, "customer:ana@example.com")
	require.NoError(t, err)
	require.Len(t, customerFeed, 1)
	assert.False(t, customerFeed[0].Read, "other scopes stay untouched")

	// Empty scope is a no-op, not an error.
	require.NoError(t, db.MarkAllNotificationsRead(ctx, "customer:ghost@example.com"))
}

func TestNotificationIDExistsPerScope(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	addNotification(t, db, models.ScopeAdmin, "dup", "event", 20)

	exists, err := db.NotificationIDExists(ctx, models.ScopeAdmin, "dup")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = db.NotificationIDExists(ctx, "customer:ana@example.com", "dup")
	require.NoError(t, err)
	assert.False(t, exists, "ids are unique per scope, not globally")
}

func TestAddNotificationDefaultsTimeLabel(t *testing.T) {
	db := setupTestDB(t)

	created := time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC)
	err := db.AddNotification(context.Background(), &models.Notification{
		ID:        "n1",
		Scope:     models.ScopeAdmin,
		Title:     "event",
		CreatedAt: created,
	}, 20)
	require.NoError(t, err)

	feed, err := db.ListNotifications(context.Background(), models.ScopeAdmin)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "14:05, 02 Mar", feed[0].TimeLabel)
}
