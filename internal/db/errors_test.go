package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"flashdeck-backend-go/internal/config"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: status.Error(codes.NotFound, "no doc"), want: ErrNotFound},
		{name: "already exists", err: status.Error(codes.AlreadyExists, "dup"), want: ErrAlreadyExists},
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "rules"), want: ErrPermissionDenied},
		{name: "unauthenticated", err: status.Error(codes.Unauthenticated, "token"), want: ErrPermissionDenied},
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), want: ErrStoreUnavailable},
		{name: "missing index", err: status.Error(codes.FailedPrecondition, "The query requires an index"), want: ErrStoreUnavailable},
		{name: "deadline", err: fmt.Errorf("rpc: %w", context.DeadlineExceeded), want: ErrStoreUnavailable},
		{name: "already translated", err: fmt.Errorf("get: %w", ErrNotFound), want: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "original error must stay in the chain")
		})
	}
}

func TestTranslateError_Passthrough(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	plain := errors.New("decode failure")
	got := TranslateError(plain)
	assert.Same(t, plain, got)
	assert.NotErrorIs(t, got, ErrStoreUnavailable)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend needs no firebase", func(t *testing.T) {
		cfg := &config.Config{StoreBackend: config.StoreBackendMemory, AuthMode: config.AuthModeHeader}
		store, clients, err := OpenStore(ctx, cfg, nil)
		require.NoError(t, err)
		assert.Nil(t, clients)
		assert.IsType(t, &MemoryStore{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{StoreBackend: "postgres", AuthMode: config.AuthModeHeader}
		_, _, err := OpenStore(ctx, cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown store backend")
	})
}
