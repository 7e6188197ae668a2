package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationStore_UpsertConnection_ReconnectReplacesConfig(t *testing.T) {
	connStr := getTestDatabaseURL(t)
	db := setupTestDatabase(t, connStr)

	userID := createTestUser(t, db, "integration-upsert@example.com")
	ctx := context.Background()

	store := NewIntegrationStore(db)

	first, err := store.UpsertConnection(ctx, UpsertConnectionInput{
		UserID:   userID,
		Provider: "github",
		Config:   json.RawMessage(`{"repository":"acme/app","webhook_secret":"old"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "connected", first.Status)
	assert.Equal(t, "old", first.ConfigString("webhook_secret"))

	second, err := store.UpsertConnection(ctx, UpsertConnectionInput{
		UserID:   userID,
		Provider: "github",
		Config:   json.RawMessage(`{"repository":"acme/app","webhook_secret":"new"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "new", second.ConfigString("webhook_secret"))
}

func TestIntegrationStore_UpsertConnection_RejectsUnknownProvider(t *testing.T) {
	connStr := getTestDatabaseURL(t)
	db := setupTestDatabase(t, connStr)

	userID := createTestUser(t, db, "integration-unknown@example.com")

	store := NewIntegrationStore(db)

	_, err := store.UpsertConnection(context.Background(), UpsertConnectionInput{
		UserID:   userID,
		Provider: "jira",
	})
	require.Error(t, err)
}

func TestIntegrationStore_FindConnectedByConfigField(t *testing.T) {
	connStr := getTestDatabaseURL(t)
	db := setupTestDatabase(t, connStr)

	userID := createTestUser(t, db, "integration-find@example.com")
	ctx := context.Background()

	store := NewIntegrationStore(db)

	created, err := store.UpsertConnection(ctx, UpsertConnectionInput{
		UserID:   userID,
		Provider: "slack",
		Config:   json.RawMessage(`{"team_id":"T12345","signing_secret":"hush"}`),
	})
	require.NoError(t, err)

	found, err := store.FindByTeamID(ctx, "T12345")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = store.FindByTeamID(ctx, "T99999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIntegrationStore_Disconnect_ExcludesFromLookup(t *testing.T) {
	connStr := getTestDatabaseURL(t)
	db := setupTestDatabase(t, connStr)

	userID := createTestUser(t, db, "integration-disconnect@example.com")
	ctx := context.Background()

	store := NewIntegrationStore(db)

	_, err := store.UpsertConnection(ctx, UpsertConnectionInput{
		UserID:   userID,
		Provider: "notion",
		Config:   json.RawMessage(`{"database_id":"db-1"}`),
	})
	require.NoError(t, err)

	require.NoError(t, store.Disconnect(ctx, userID, "notion"))

	_, err = store.FindByDatabaseID(ctx, "db-1")
	require.ErrorIs(t, err, ErrNotFound)

	// The row survives so a reconnect keeps its identity.
	integration, err := store.GetByUserProvider(ctx, userID, "notion")
	require.NoError(t, err)
	assert.Equal(t, "disconnected", integration.Status)
}

func TestIntegrationStore_Disconnect_MissingRow(t *testing.T) {
	connStr := getTestDatabaseURL(t)
	db := setupTestDatabase(t, connStr)

	userID := createTestUser(t, db, "integration-disconnect-missing@example.com")

	store := NewIntegrationStore(db)

	err := store.Disconnect(context.Background(), userID, "zapier")
	require.ErrorIs(t, err, ErrNotFound)
}
