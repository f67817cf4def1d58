package remove

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"consumo-backend/internal/storage"
)

type MockConfigurationDeleteProvider struct {
	mock.Mock
}

func (m *MockConfigurationDeleteProvider) DeleteConfiguration(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestDeleteConfiguration(t *testing.T) {
	mockProvider := new(MockConfigurationDeleteProvider)
	mockProvider.On("DeleteConfiguration", mock.Anything, int64(2)).Return(nil).Once()
	mockProvider.On("DeleteConfiguration", mock.Anything, int64(3)).Return(storage.ErrNotFound).Once()

	r := chi.NewRouter()
	r.Delete("/api/admin/configurations/{id}", DeleteConfiguration(slog.Default(), mockProvider))

	tests := []struct {
		path string
		code int
	}{
		{"/api/admin/configurations/2", http.StatusNoContent},
		{"/api/admin/configurations/3", http.StatusNotFound},
		{"/api/admin/configurations/-", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, tt.path, nil))
		assert.Equal(t, tt.code, rr.Code, tt.path)
	}

	mockProvider.AssertExpectations(t)
}
