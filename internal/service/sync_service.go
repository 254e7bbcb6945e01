package service

import (
	"context"

	"feedsync/internal/logger"
	"feedsync/internal/model"
	"feedsync/internal/sanitize"
	"feedsync/internal/store"
)

// Upserter reconciles one entry against the store.
type Upserter interface {
	Upsert(ctx context.Context, entry model.Entry) (store.Outcome, model.RemoteRecord, error)
}

// SyncService runs feeds through the ingestor and the store, one feed and
// one entry at a time.
type SyncService struct {
	ingestor Ingestor
	upserter Upserter
}

func NewSyncService(ingestor Ingestor, upserter Upserter) *SyncService {
	return &SyncService{ingestor: ingestor, upserter: upserter}
}

// Run syncs feeds in order. Feed and entry failures are counted, never
// returned. A cancelled context stops the run before the next feed or entry.
func (s *SyncService) Run(ctx context.Context, feeds []model.FeedSource) model.SyncResult {
	var result model.SyncResult
	for _, feed := range feeds {
		if ctx.Err() != nil {
			logger.Warn("sync cancelled", "module", "service", "action", "sync", "resource", "feed", "result", "cancelled", "error", ctx.Err())
			break
		}
		result.Add(s.syncFeed(ctx, feed))
	}
	return result
}

func (s *SyncService) syncFeed(ctx context.Context, feed model.FeedSource) model.FeedResult {
	fr := model.FeedResult{Name: feed.Name}
	logger.Info("processing feed", "module", "service", "action", "sync", "resource", "feed", "result", "ok", "feed", feed.Name, "url", feed.URL)

	entries, err := s.ingestor.Fetch(ctx, feed)
	if err != nil {
		logger.Error("feed failed", "module", "service", "action", "sync", "resource", "feed", "result", "failed", "feed", feed.Name, "error", err)
		fr.Err = err
		return fr
	}
	if len(entries) == 0 {
		logger.Info("no entries found", "module", "service", "action", "sync", "resource", "feed", "result", "skipped", "feed", feed.Name)
		fr.Empty = true
		return fr
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		outcome, _, err := s.upserter.Upsert(ctx, entry)
		if err != nil {
			fr.Failed++
			logger.Error("entry sync failed", "module", "service", "action", "upsert", "resource", "entry", "result", "failed", "feed", feed.Name, "title", sanitize.Truncate(entry.Title, 50), "error", err)
			continue
		}
		switch outcome {
		case store.Created:
			fr.Created++
		case store.Updated:
			fr.Updated++
		}
		logger.Debug("entry synced", "module", "service", "action", "upsert", "resource", "entry", "result", outcome.String(), "feed", feed.Name, "title", sanitize.Truncate(entry.Title, 50))
	}

	logger.Info("feed synced", "module", "service", "action", "sync", "resource", "feed", "result", "ok", "feed", feed.Name, "entries", len(entries), "created", fr.Created, "updated", fr.Updated, "failed", fr.Failed)
	return fr
}
