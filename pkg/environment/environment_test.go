package environment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/usagegate/pkg/environment"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want environment.Environment
	}{
		{"dev", environment.Development},
		{"Development", environment.Development},
		{"stage", environment.Staging},
		{"prod", environment.Production},
		{" production ", environment.Production},
		{"qa", environment.Environment("qa")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, environment.Parse(tt.in))
		})
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, environment.FromContext(context.Background()))
	assert.False(t, environment.IsDevelopment(context.Background()))

	ctx := environment.WithContext(context.Background(), environment.Development)
	assert.Equal(t, environment.Development, environment.FromContext(ctx))
	assert.True(t, environment.IsDevelopment(ctx))
	assert.False(t, environment.IsProduction(ctx))

	ctx = environment.WithContext(context.Background(), "prod")
	assert.True(t, environment.IsProduction(ctx))
	assert.False(t, environment.IsStaging(ctx))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got environment.Environment
	handler := environment.Middleware(environment.Staging)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = environment.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, environment.Staging, got)
}
