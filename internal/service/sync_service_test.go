package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedsync/internal/db/testutil"
	"feedsync/internal/model"
	"feedsync/internal/network"
	"feedsync/internal/service"
	servicemock "feedsync/internal/service/mock"
	"feedsync/internal/snowflake"
	"feedsync/internal/store"
	"feedsync/internal/store/sqlite"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSyncService_Run_NewEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := servicemock.NewMockIngestor(ctrl)
	upserter := servicemock.NewMockUpserter(ctrl)

	feed := model.FeedSource{URL: "http://x/feed", Name: "X"}
	entry, ok := newNormalizer().Normalize(fakeItem{title: "Hello", link: "http://x/1"}, "X", nil)
	require.True(t, ok)

	ingestor.EXPECT().Fetch(gomock.Any(), feed).Return([]model.Entry{entry}, nil)
	upserter.EXPECT().Upsert(gomock.Any(), entry).Return(store.Created, model.RemoteRecord{ID: "p1"}, nil)

	result := service.NewSyncService(ingestor, upserter).Run(context.Background(), []model.FeedSource{feed})
	require.Equal(t, 1, result.FeedsProcessed)
	require.Equal(t, 0, result.FeedsFailed)
	require.Equal(t, 1, result.EntriesCreated)
	require.Equal(t, 0, result.EntriesUpdated)
	require.Equal(t, 1, result.Total())
}

func TestSyncService_Run_FeedFailureDoesNotAbort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := servicemock.NewMockIngestor(ctrl)
	upserter := servicemock.NewMockUpserter(ctrl)

	bad := model.FeedSource{URL: "http://unreachable", Name: "Bad"}
	good := model.FeedSource{URL: "http://x/feed", Name: "Good"}
	entry := model.Entry{Title: "t", URL: "u", GUID: "g"}

	gomock.InOrder(
		ingestor.EXPECT().Fetch(gomock.Any(), bad).Return([]model.Entry{}, fmt.Errorf("%w: Bad: dial", service.ErrFeedFetch)),
		ingestor.EXPECT().Fetch(gomock.Any(), good).Return([]model.Entry{entry}, nil),
	)
	upserter.EXPECT().Upsert(gomock.Any(), entry).Return(store.Updated, model.RemoteRecord{ID: "p1"}, nil)

	result := service.NewSyncService(ingestor, upserter).Run(context.Background(), []model.FeedSource{bad, good})
	require.Equal(t, 1, result.FeedsFailed)
	require.Equal(t, 1, result.FeedsProcessed)
	require.Equal(t, 1, result.EntriesUpdated)
	require.Len(t, result.Feeds, 2)
	require.ErrorIs(t, result.Feeds[0].Err, service.ErrFeedFetch)
}

func TestSyncService_Run_EntryFailuresCounted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := servicemock.NewMockIngestor(ctrl)
	upserter := servicemock.NewMockUpserter(ctrl)

	feed := model.FeedSource{URL: "http://x/feed", Name: "X"}
	entries := []model.Entry{
		{Title: "a", URL: "u1", GUID: "g1"},
		{Title: "b", URL: "u2", GUID: "g2"},
		{Title: "c", URL: "u3", GUID: "g3"},
	}

	ingestor.EXPECT().Fetch(gomock.Any(), feed).Return(entries, nil)
	gomock.InOrder(
		upserter.EXPECT().Upsert(gomock.Any(), entries[0]).Return(store.Created, model.RemoteRecord{}, nil),
		upserter.EXPECT().Upsert(gomock.Any(), entries[1]).Return(store.Outcome(0), model.RemoteRecord{}, store.ErrRateLimitExhausted),
		upserter.EXPECT().Upsert(gomock.Any(), entries[2]).Return(store.Updated, model.RemoteRecord{}, nil),
	)

	result := service.NewSyncService(ingestor, upserter).Run(context.Background(), []model.FeedSource{feed})
	require.Equal(t, 1, result.FeedsProcessed)
	require.Equal(t, 1, result.EntriesCreated)
	require.Equal(t, 1, result.EntriesUpdated)
	require.Equal(t, 1, result.EntriesFailed)
}

func TestSyncService_Run_EmptyFeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := servicemock.NewMockIngestor(ctrl)
	upserter := servicemock.NewMockUpserter(ctrl)

	feed := model.FeedSource{URL: "http://x/feed", Name: "X"}
	ingestor.EXPECT().Fetch(gomock.Any(), feed).Return([]model.Entry{}, nil)

	result := service.NewSyncService(ingestor, upserter).Run(context.Background(), []model.FeedSource{feed})
	require.Zero(t, result.FeedsProcessed)
	require.Zero(t, result.FeedsFailed)
	require.Zero(t, result.Total())
	require.Len(t, result.Feeds, 1)
	require.True(t, result.Feeds[0].Empty)
}

func TestSyncService_Run_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ingestor := servicemock.NewMockIngestor(ctrl)
	upserter := servicemock.NewMockUpserter(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := service.NewSyncService(ingestor, upserter).Run(ctx, []model.FeedSource{{URL: "u", Name: "n"}})
	require.Zero(t, result.FeedsProcessed)
	require.Zero(t, result.FeedsFailed)
}

func TestSyncService_Run_IdempotentAgainstSQLite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	ids, err := snowflake.NewGenerator(1)
	require.NoError(t, err)
	backend := sqlite.New(testutil.NewTestDB(t), ids)
	adapter := store.NewAdapter(backend, store.Options{})

	ingestor := service.NewIngestService(network.NewClientFactory(""), service.NewNormalizer(), service.IngestOptions{})
	sync := service.NewSyncService(ingestor, adapter)
	feeds := []model.FeedSource{{URL: srv.URL, Name: "Test"}}

	first := sync.Run(context.Background(), feeds)
	require.Equal(t, 2, first.EntriesCreated)
	require.Zero(t, first.EntriesUpdated)

	second := sync.Run(context.Background(), feeds)
	require.Zero(t, second.EntriesCreated)
	require.Equal(t, 2, second.EntriesUpdated)

	n, err := backend.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

