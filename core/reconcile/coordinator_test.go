package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSyncAll_FixedOrderAndIsolation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	coord := NewCoordinator(testSpec(), zap.New(core))

	db := newMemTarget("db")
	snapshot := newMemTarget("snapshot")
	remote := newMemTarget("remote")
	remote.prepErr = errors.New("credentials rejected")

	result := coord.SyncAll(context.Background(), []source{{"A", "1"}}, map[Kind]Target[record]{
		KindRemote:   remote,
		KindSnapshot: snapshot,
		KindDatabase: db,
	}, SyncOptions{})

	assert.Equal(t, []Kind{KindDatabase, KindSnapshot, KindRemote}, result.Order)
	assert.Equal(t, StatusOK, result.Results[KindDatabase].Status)
	assert.Equal(t, StatusOK, result.Results[KindSnapshot].Status)
	assert.Equal(t, StatusFailed, result.Results[KindRemote].Status)
	assert.Contains(t, result.Results[KindRemote].Error, "credentials rejected")
	assert.Equal(t, []Kind{KindRemote}, result.Failed())
	assert.Equal(t, 1, result.Errors())

	assert.Len(t, db.items, 1)
	assert.Len(t, snapshot.items, 1)
	assert.Equal(t, 1, logs.FilterMessage("Target failed").Len())
}

func TestSyncAll_Only(t *testing.T) {
	coord := NewCoordinator(testSpec(), nil)
	db := newMemTarget("db")
	snapshot := newMemTarget("snapshot")

	result := coord.SyncAll(context.Background(), []source{{"A", "1"}}, map[Kind]Target[record]{
		KindDatabase: db,
		KindSnapshot: snapshot,
	}, SyncOptions{Only: []Kind{KindSnapshot, KindRemote}})

	assert.Equal(t, []Kind{KindSnapshot}, result.Order)
	assert.Empty(t, db.items)
	assert.Len(t, snapshot.items, 1)
	assert.Empty(t, result.Failed())
}

func TestSyncAll_PassesOptions(t *testing.T) {
	coord := NewCoordinator(testSpec(), nil)
	db := newMemTarget("db")

	result := coord.SyncAll(context.Background(), []source{{"A", "1"}}, map[Kind]Target[record]{KindDatabase: db},
		SyncOptions{ReconcileOptions: ReconcileOptions{DryRun: true}})

	require.Contains(t, result.Results, KindDatabase)
	assert.True(t, result.Results[KindDatabase].Report.DryRun)
	assert.Empty(t, db.items)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("snapshot")
	require.NoError(t, err)
	assert.Equal(t, KindSnapshot, k)

	_, err = ParseKind("cache")
	assert.Error(t, err)
}
