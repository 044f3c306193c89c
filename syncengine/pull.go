package syncengine

import (
	"context"

	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/sirupsen/logrus"
)

// pullRemote pages through remote changes after the stored watermark and
// applies each page through the collection's merge strategy. The watermark
// only advances after a page is fully applied, so a crash mid-page replays
// the page instead of skipping records; strategies are idempotent, so the
// replay is harmless.
func (e *Engine) pullRemote(ctx context.Context) (pulled int, err error) {
	state, err := models.GetSyncState(ctx, e.BranchId)
	if err != nil {
		return 0, err
	}
	cursor := state.PullWatermark

	for {
		page, err := e.Client.PullChanges(ctx, e.BranchId, cursor, e.BatchSize)
		if err != nil {
			return pulled, err
		}
		if len(page.Changes) == 0 {
			return pulled, nil
		}

		for _, change := range page.Changes {
			strategy, err := strategyFor(change.Kind)
			if err != nil {
				// an unknown kind means the remote is newer than this
				// build; skip rather than wedge the whole pull
				if e.Logger != nil {
					e.Logger.WithFields(logrus.Fields{
						"field": "SyncEngine",
						"kind":  string(change.Kind),
					}).Warn("skipping change of unknown kind")
				}
				continue
			}
			if err := strategy.Apply(ctx, change); err != nil {
				return pulled, err
			}
			pulled++
		}

		cursor = page.NextCursor
		if err := models.AdvancePullWatermark(ctx, e.BranchId, cursor); err != nil {
			return pulled, err
		}
		if !page.HasMore {
			return pulled, nil
		}
	}
}
