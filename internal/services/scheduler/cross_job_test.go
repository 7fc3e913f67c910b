package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casetrack-desktop/internal/api"
	"casetrack-desktop/internal/services/crossref"
)

type fakeCrossService struct {
	mu      sync.Mutex
	filters []api.CrossFilters
	err     error
}

func (f *fakeCrossService) Start(filters api.CrossFilters, onDone func(crossref.Result)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.filters = append(f.filters, filters)
	return "cross-task-1", nil
}

func (f *fakeCrossService) calls() []api.CrossFilters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.CrossFilters(nil), f.filters...)
}

func newTestService(cross CrossServiceInterface) *Service {
	return &Service{
		ctx:          context.Background(),
		jobs:         make(map[string]cron.EntryID),
		crossService: cross,
	}
}

func TestRunCrossJob(t *testing.T) {
	t.Run("Should translate the payload into cross-reference filters", func(t *testing.T) {
		cross := &fakeCrossService{}
		service := newTestService(cross)

		service.runCrossJob(`{
			"caso_id": 12,
			"matricula": "1234ABC",
			"source_name": "peajes",
			"fecha_desde": "2024-01-01",
			"fecha_hasta": "2024-06-30"
		}`)

		calls := cross.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, 12, calls[0].CasoID)
		assert.Equal(t, "1234ABC", calls[0].Matricula)
		assert.Equal(t, "peajes", calls[0].SourceName)
		assert.Equal(t, "2024-01-01", calls[0].FechaDesde)
		assert.Equal(t, "2024-06-30", calls[0].FechaHasta)
	})

	t.Run("Should pass custom filters through", func(t *testing.T) {
		cross := &fakeCrossService{}
		service := newTestService(cross)

		service.runCrossJob(`{"caso_id": 3, "custom_filters": {"proveedor": "norte"}}`)

		calls := cross.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "norte", calls[0].CustomFilters["proveedor"])
	})

	t.Run("Should skip execution without a case id", func(t *testing.T) {
		cross := &fakeCrossService{}
		service := newTestService(cross)

		service.runCrossJob(`{"matricula": "1234ABC"}`)

		assert.Empty(t, cross.calls())
	})

	t.Run("Should skip execution on an empty payload", func(t *testing.T) {
		cross := &fakeCrossService{}
		service := newTestService(cross)

		service.runCrossJob("")

		assert.Empty(t, cross.calls())
	})

	t.Run("Should skip execution on malformed json", func(t *testing.T) {
		cross := &fakeCrossService{}
		service := newTestService(cross)

		service.runCrossJob(`{"caso_id": `)

		assert.Empty(t, cross.calls())
	})
}

func TestUpsertJobValidation(t *testing.T) {
	t.Run("Should reject unknown job types before touching the database", func(t *testing.T) {
		service := newTestService(&fakeCrossService{})

		_, err := service.UpsertJob(UpsertJobRequest{
			Name:    "bad",
			JobType: "transfer",
			Cron:    "0 0 2 * * *",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown job type")
	})

	t.Run("Should reject missing required fields", func(t *testing.T) {
		service := newTestService(&fakeCrossService{})

		_, err := service.UpsertJob(UpsertJobRequest{Name: "incomplete"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "required")
	})
}
