package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_RetriesUntilSuccess(t *testing.T) {
	p := New(1*time.Millisecond, 10*time.Millisecond)

	attempts := 0
	err := p.Run(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 4 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestPolicy_StopsOnContextCancel(t *testing.T) {
	p := New(5*time.Millisecond, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := p.Run(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})

	assert.Error(t, err)
	assert.Greater(t, attempts, 0)
}

func TestDefault_BuildsExecutor(t *testing.T) {
	p := Default()
	assert.NotNil(t, p.executor)
}
