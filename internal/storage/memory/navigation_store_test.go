package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/guc-preloader/internal/navigation"
)

func record(i int) navigation.Record {
	return navigation.Record{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Path:      fmt.Sprintf("/site-%d", i),
		Target:    fmt.Sprintf("https://site-%d.example/", i),
		Step:      "registry",
		At:        time.Unix(int64(1700000000+i), 0).UTC(),
	}
}

func TestNavigationStoreNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewNavigationStore(8)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, record(i)))
	}

	got, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "/site-2", got[0].Path)
	require.Equal(t, "/site-0", got[2].Path)

	got, err = store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "/site-1", got[1].Path)
}

func TestNavigationStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	store := NewNavigationStore(3)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, store.Append(ctx, record(i)))
	}
	require.Equal(t, 3, store.Len())

	got, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	paths := make([]string, 0, len(got))
	for _, rec := range got {
		paths = append(paths, rec.Path)
	}
	require.Equal(t, []string{"/site-6", "/site-5", "/site-4"}, paths)
}

func TestNavigationStoreEmpty(t *testing.T) {
	t.Parallel()

	got, err := NewNavigationStore(0).Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestNavigationStoreConcurrentAppend(t *testing.T) {
	t.Parallel()

	store := NewNavigationStore(64)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Append(context.Background(), record(i))
			_, _ = store.Recent(context.Background(), 4)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 32, store.Len())
}

func TestNavigationStoreClosed(t *testing.T) {
	t.Parallel()

	store := NewNavigationStore(2)
	store.Close()
	require.ErrorIs(t, store.Append(context.Background(), record(1)), navigation.ErrStoreClosed)
	_, err := store.Recent(context.Background(), 1)
	require.ErrorIs(t, err, navigation.ErrStoreClosed)
}
