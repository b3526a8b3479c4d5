package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
)

type fakeTrigger struct {
	entry    *sync.ExecutionLogEntry
	err      error
	tenantID uuid.UUID
	flowType sync.FlowType
	trigger  sync.TriggerKind
}

func (f *fakeTrigger) TriggerSync(_ context.Context, tenantID uuid.UUID, flowType sync.FlowType, trigger sync.TriggerKind) (*sync.ExecutionLogEntry, error) {
	f.tenantID = tenantID
	f.flowType = flowType
	f.trigger = trigger
	if f.err != nil {
		return nil, f.err
	}
	return f.entry, nil
}

type fakeLogStore struct {
	entries []sync.ExecutionLogEntry
	err     error
}

func (f *fakeLogStore) Save(context.Context, *sync.ExecutionLogEntry) error { return nil }

func (f *fakeLogStore) FindByID(_ context.Context, id uuid.UUID) (*sync.ExecutionLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.entries {
		if f.entries[i].ID == id {
			e := f.entries[i]
			return &e, nil
		}
	}
	return nil, sync.ErrLogEntryNotFound
}

func (f *fakeLogStore) FindByCorrelation(_ context.Context, correlationID uuid.UUID) ([]sync.ExecutionLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []sync.ExecutionLogEntry
	for _, e := range f.entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogStore) FindRecentByTenant(_ context.Context, tenantID uuid.UUID, limit int) ([]sync.ExecutionLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []sync.ExecutionLogEntry
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLogStore) FindRetryable(context.Context, time.Time, int) ([]sync.ExecutionLogEntry, error) {
	return nil, nil
}

func finishedRun(tenantID uuid.UUID) *sync.ExecutionLogEntry {
	entry := sync.NewExecutionLogEntry(tenantID, "full-sync", sync.FlowTypeFullSync, uuid.New(), 3)
	entry.Start()
	entry.Complete(sync.RunCounts{Total: 4, Success: 4})
	return entry
}

func newSyncRouter(t *testing.T, trigger SyncTrigger, logs sync.ExecutionLogRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	router := gin.New()
	api := router.Group("/api/v1")
	NewSyncHandler(trigger, logs, zap.NewNop()).RegisterRoutes(api)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSyncHandlerTriggerSync(t *testing.T) {
	tenantID := uuid.New()

	t.Run("runs a manual trigger and returns the finished run", func(t *testing.T) {
		trigger := &fakeTrigger{entry: finishedRun(tenantID)}
		router := newSyncRouter(t, trigger, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodPost, "/api/v1/sync/trigger", gin.H{
			"tenant_id": tenantID.String(),
			"flow_type": "FULL_SYNC",
		})

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, tenantID, trigger.tenantID)
		assert.Equal(t, sync.FlowTypeFullSync, trigger.flowType)
		assert.Equal(t, sync.TriggerManual, trigger.trigger)

		run := rec.Body.String()
		assert.Contains(t, run, `"status":"SUCCESS"`)
	})

	t.Run("rejects an unknown flow type", func(t *testing.T) {
		trigger := &fakeTrigger{}
		router := newSyncRouter(t, trigger, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodPost, "/api/v1/sync/trigger", gin.H{
			"tenant_id": tenantID.String(),
			"flow_type": "REINDEX",
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})

	t.Run("rejects a malformed tenant id", func(t *testing.T) {
		router := newSyncRouter(t, &fakeTrigger{}, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodPost, "/api/v1/sync/trigger", gin.H{
			"tenant_id": "not-a-uuid",
			"flow_type": "FULL_SYNC",
		})

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps a disabled tenant to 422", func(t *testing.T) {
		trigger := &fakeTrigger{err: sync.ErrTenantDisabled}
		router := newSyncRouter(t, trigger, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodPost, "/api/v1/sync/trigger", gin.H{
			"tenant_id": tenantID.String(),
			"flow_type": "INCREMENTAL_SYNC",
		})

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeTenantDisabled, resp.Error.Code)
	})

	t.Run("maps an unknown tenant to 404", func(t *testing.T) {
		trigger := &fakeTrigger{err: sync.ErrNotFound}
		router := newSyncRouter(t, trigger, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodPost, "/api/v1/sync/trigger", gin.H{
			"tenant_id": tenantID.String(),
			"flow_type": "FETCH_ORDERS",
		})

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSyncHandlerListRuns(t *testing.T) {
	tenantID := uuid.New()

	t.Run("returns recent runs for a tenant", func(t *testing.T) {
		store := &fakeLogStore{entries: []sync.ExecutionLogEntry{
			*finishedRun(tenantID),
			*finishedRun(tenantID),
			*finishedRun(uuid.New()),
		}}
		router := newSyncRouter(t, &fakeTrigger{}, store)

		rec := doJSON(t, router, http.MethodGet, "/api/v1/sync/runs?tenant_id="+tenantID.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Success bool                `json:"success"`
			Data    dto.RunListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Data.Runs, 2)
		for _, run := range resp.Data.Runs {
			assert.Equal(t, tenantID.String(), run.TenantID)
		}
	})

	t.Run("requires tenant_id", func(t *testing.T) {
		router := newSyncRouter(t, &fakeTrigger{}, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodGet, "/api/v1/sync/runs", nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an oversized limit", func(t *testing.T) {
		router := newSyncRouter(t, &fakeTrigger{}, &fakeLogStore{})

		path := fmt.Sprintf("/api/v1/sync/runs?tenant_id=%s&limit=500", tenantID)
		rec := doJSON(t, router, http.MethodGet, path, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSyncHandlerGetRun(t *testing.T) {
	tenantID := uuid.New()

	t.Run("returns the run and its correlated steps", func(t *testing.T) {
		parent := finishedRun(tenantID)
		child := parent.ChildEntry("fetch-orders", sync.FlowTypeFetchOrders)
		child.Start()
		child.Complete(sync.RunCounts{Total: 2, Success: 2})
		store := &fakeLogStore{entries: []sync.ExecutionLogEntry{*parent, *child}}
		router := newSyncRouter(t, &fakeTrigger{}, store)

		rec := doJSON(t, router, http.MethodGet, "/api/v1/sync/runs/"+parent.ID.String(), nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data struct {
				Run   dto.RunResponse   `json:"run"`
				Steps []dto.RunResponse `json:"steps"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, parent.ID.String(), resp.Data.Run.ID)
		assert.Len(t, resp.Data.Steps, 2)
	})

	t.Run("unknown run returns 404", func(t *testing.T) {
		router := newSyncRouter(t, &fakeTrigger{}, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodGet, "/api/v1/sync/runs/"+uuid.NewString(), nil)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		router := newSyncRouter(t, &fakeTrigger{}, &fakeLogStore{})

		rec := doJSON(t, router, http.MethodGet, "/api/v1/sync/runs/abc", nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
