package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appradar/appradar/internal/appstore"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	t.Parallel()

	q := NewQueue[appstore.DetailJob](4)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, appstore.DetailJob{Rank: i}))
	}
	require.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, i, job.Rank)
	}
}

func TestDequeueRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue[appstore.DiscoveryJob](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseIsIdempotentAndDrains(t *testing.T) {
	t.Parallel()

	q := NewQueue[appstore.ReviewJob](2)
	require.NoError(t, q.Enqueue(context.Background(), appstore.ReviewJob{AppID: "a"}))
	q.Close()
	q.Close()

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", job.AppID)

	_, err = q.Dequeue(context.Background())
	require.True(t, errors.Is(err, ErrClosed))
}
