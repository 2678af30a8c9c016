package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	notFound := errors.New("not found")
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return Permanent(notFound)
	})

	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})

	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}
