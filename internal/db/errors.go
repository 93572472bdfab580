package db

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when creating a document whose ID is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrPermissionDenied is returned when access rules reject a read or write.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable marks transient backend failures, including queries
	// whose composite index is not built yet. Callers may retry.
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// TranslateError maps a Firestore/gRPC error onto the package sentinels.
// The original error stays in the chain.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrNotFound, ErrAlreadyExists, ErrPermissionDenied, ErrStoreUnavailable} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Internal, codes.FailedPrecondition:
		// FailedPrecondition is what Firestore returns while a required index is missing.
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
