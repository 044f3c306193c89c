package syncengine

import (
	"context"
	"errors"

	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/sirupsen/logrus"
)

// pushPending drains the queue oldest revision first. Acknowledged entries
// are deleted one by one so a mid-drain failure keeps every unsent entry;
// remote rejections park the entry as failed and the drain continues, while
// transport errors stop the cycle and return for backoff.
func (e *Engine) pushPending(ctx context.Context, run *models.SyncRun) (pushed int, rejected int, err error) {
	for {
		entries, err := models.PendingSyncEntries(ctx, e.BranchId, e.BatchSize)
		if err != nil {
			return pushed, rejected, err
		}
		if len(entries) == 0 {
			return pushed, rejected, nil
		}

		for _, entry := range entries {
			change := ChangeRecord{
				BranchId: entry.BranchId,
				Kind:     entry.Kind,
				EntityId: entry.EntityId,
				Op:       entry.Op,
				Revision: entry.Revision,
				Payload:  entry.Payload,
			}
			pushErr := e.Client.PushChange(ctx, change)
			if pushErr == nil {
				if err := models.DeleteSyncEntry(ctx, entry.ID); err != nil {
					return pushed, rejected, err
				}
				pushed++
				continue
			}

			var rejection *RejectedError
			if errors.As(pushErr, &rejection) {
				if err := models.MarkSyncEntryFailed(ctx, entry.ID, rejection.Message); err != nil {
					return pushed, rejected, err
				}
				rejected++
				if e.Logger != nil {
					e.Logger.WithFields(logrus.Fields{
						"field":     "SyncEngine",
						"branch":    entry.BranchId,
						"kind":      string(entry.Kind),
						"entity_id": entry.EntityId,
					}).Error("change rejected by remote: " + rejection.Message)
				}
				continue
			}

			// transient: record the attempt and hand the error up for backoff
			_ = models.BumpSyncEntryAttempt(ctx, entry.ID, pushErr.Error())
			return pushed, rejected, pushErr
		}

		if len(entries) < e.BatchSize {
			return pushed, rejected, nil
		}
	}
}
