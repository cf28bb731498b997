package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"service-catalog/core/database"
	"service-catalog/core/middleware/rayid"
	"service-catalog/core/reconcile"
	"service-catalog/core/resilient"
	"service-catalog/feature/catalog"
	"service-catalog/feature/catalog/models"
	"service-catalog/feature/catalog/repository"
	"service-catalog/feature/catalog/targets"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type fixture struct {
	app     *fiber.App
	fs      afero.Fs
	service *catalog.Service
}

func setup(t *testing.T, sources catalog.SourceFunc) *fixture {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	client := resilient.NewClient(db, nil, resilient.DefaultPolicy(), zap.NewNop(), resilient.WithSleeper(noSleep))
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.New(client, zap.NewNop())
	require.NoError(t, repo.Prepare(context.Background()))

	fs := afero.NewMemMapFs()
	svc := catalog.NewService(repo, catalog.Targets{
		reconcile.KindDatabase: targets.NewDatabaseTarget(repo),
		reconcile.KindSnapshot: targets.NewSnapshotTarget(targets.NewFileBackend(fs, "services.json"), nil),
	}, sources, zap.NewNop())

	app := fiber.New()
	app.Use(rayid.New())
	require.NoError(t, catalog.NewFeature(svc).Load(app))
	return &fixture{app: app, fs: fs, service: svc}
}

func staticSources(records ...models.RawRecord) catalog.SourceFunc {
	return func(ctx context.Context) ([]models.RawRecord, error) {
		return records, nil
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestHandler_CRUD(t *testing.T) {
	f := setup(t, staticSources())

	status, body := f.do(t, "POST", "/services", `{"name":"Casamento","basePrice":"4200","details":{"capture":"8h","addOns":"Álbum"}}`)
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "8h", body["captureDuration"])
	assert.Equal(t, "Álbum", body["possibleAddOns"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "8h", details["capture"])
	id := body["id"].(string)

	status, body = f.do(t, "GET", "/services", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = f.do(t, "GET", "/services/"+id, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Casamento", body["name"])

	status, body = f.do(t, "PUT", "/services/"+id, `{"basePrice":"4500","travelFee":"R$ 200"}`)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "4500", body["basePrice"])
	assert.Equal(t, "R$ 200", body["details"].(map[string]any)["travel"])

	status, _ = f.do(t, "POST", "/services", `{"name":"Casamento"}`)
	assert.Equal(t, fiber.StatusConflict, status)

	status, body = f.do(t, "DELETE", "/services/"+id, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Casamento", body["name"])
	assert.Equal(t, "4500", body["basePrice"])

	status, _ = f.do(t, "GET", "/services/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandler_Validation(t *testing.T) {
	f := setup(t, staticSources())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"Bad ID", "GET", "/services/abc", "", fiber.StatusBadRequest},
		{"Zero ID", "DELETE", "/services/0", "", fiber.StatusBadRequest},
		{"Malformed JSON", "POST", "/services", `{"name":`, fiber.StatusBadRequest},
		{"Missing Name", "POST", "/services", `{"basePrice":"10"}`, fiber.StatusBadRequest},
		{"Unparsable Price", "POST", "/services", `{"name":"X","basePrice":"a combinar"}`, fiber.StatusBadRequest},
		{"Negative Price", "POST", "/services", `{"name":"X","basePrice":-5}`, fiber.StatusBadRequest},
		{"Update Unknown", "PUT", "/services/99", `{"description":"x"}`, fiber.StatusNotFound},
		{"Negative Limit", "GET", "/services?limit=-1", "", fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status, body)
		})
	}

	status, body := f.do(t, "POST", "/services", `{"name":"X","basePrice":-5}`)
	require.Equal(t, fiber.StatusBadRequest, status)
	fields := body["fields"].([]any)
	assert.Equal(t, "basePrice", fields[0].(map[string]any)["field"])
}

func TestHandler_Sync(t *testing.T) {
	f := setup(t, staticSources(
		models.FlatShape{Name: "A", BasePrice: "100"},
		models.FlatShape{Name: "B", BasePrice: 100},
	))

	status, body := f.do(t, "POST", "/services/sync", "")
	require.Equal(t, fiber.StatusOK, status, body)
	results := body["results"].(map[string]any)
	db := results["database"].(map[string]any)
	assert.Equal(t, "ok", db["status"])
	assert.EqualValues(t, 2, db["report"].(map[string]any)["created"])
	assert.Contains(t, results, "snapshot")

	exists, err := afero.Exists(f.fs, "services.json")
	require.NoError(t, err)
	assert.True(t, exists)

	status, body = f.do(t, "POST", "/services/sync?targets=database", "")
	require.Equal(t, fiber.StatusOK, status)
	results = body["results"].(map[string]any)
	assert.NotContains(t, results, "snapshot")
	assert.EqualValues(t, 2, results["database"].(map[string]any)["report"].(map[string]any)["unchanged"])

	status, _ = f.do(t, "POST", "/services/sync?targets=cache", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHandler_SyncSourceError(t *testing.T) {
	f := setup(t, func(ctx context.Context) ([]models.RawRecord, error) {
		return nil, errors.New("definitions missing")
	})

	status, body := f.do(t, "POST", "/services/sync", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "definitions missing")
}

func TestService_SyncCollapsesConcurrentCalls(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	f := setup(t, func(ctx context.Context) ([]models.RawRecord, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return []models.RawRecord{models.FlatShape{Name: "A"}}, nil
	})

	var wg sync.WaitGroup
	shared := make([]bool, 2)
	results := make([]*reconcile.SyncResult, 2)
	run := func(i int) {
		defer wg.Done()
		res, sh, err := f.service.Sync(context.Background(), reconcile.SyncOptions{})
		assert.NoError(t, err)
		results[i], shared[i] = res, sh
	}

	wg.Add(1)
	go run(0)
	<-started
	wg.Add(1)
	go run(1)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.True(t, shared[0] && shared[1])
	assert.Same(t, results[0], results[1])
}

func TestService_Kinds(t *testing.T) {
	f := setup(t, staticSources())
	assert.Equal(t, []reconcile.Kind{reconcile.KindDatabase, reconcile.KindSnapshot}, f.service.Kinds())
}
