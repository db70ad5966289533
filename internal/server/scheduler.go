package server

import (
	"context"
	"time"

	"github.com/rxtech-lab/pharmalink/internal/logger"
	"github.com/rxtech-lab/pharmalink/internal/models"
	"github.com/rxtech-lab/pharmalink/internal/services"
)

// DocumentExpiryTask expires draft and pending-signature documents older than
// maxAge.
func DocumentExpiryTask(documents services.DocumentService, maxAge time.Duration) services.TaskFunc {
	return func(ctx context.Context) (models.JSON, error) {
		expired, err := documents.ExpireStale(ctx, maxAge)
		if err != nil {
			return nil, err
		}
		return models.JSON{"expired": expired}, nil
	}
}

// StartDocumentExpiry enqueues an expiry sweep right away and then every
// interval until ctx is cancelled.
func StartDocumentExpiry(ctx context.Context, tasks services.TaskService, documents services.DocumentService, maxAge, interval time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		logger.Warn(ctx, "document expiry disabled", "interval", interval, "max_age", maxAge)
		return
	}

	sweep := func() {
		if _, err := tasks.Enqueue(ctx, services.TaskKindDocumentExpiry, nil, DocumentExpiryTask(documents, maxAge)); err != nil {
			logger.Error(ctx, "failed to enqueue document expiry", "error", err)
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweep()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
}
