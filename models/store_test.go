package models_test

import (
	"context"
	"encoding/json"
	"testing"

	"bitbucket.org/shweretail/posledger_backend/models"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/shopspring/decimal"
)

func entriesFor(t *testing.T, ctx context.Context, branchId string, entityId string) []models.SyncQueueEntry {
	t.Helper()
	entries, err := models.PendingSyncEntries(ctx, branchId, 100)
	if err != nil {
		t.Fatalf("PendingSyncEntries: %v", err)
	}
	var out []models.SyncQueueEntry
	for _, e := range entries {
		if e.EntityId == entityId {
			out = append(out, e)
		}
	}
	return out
}

func TestPut_EnqueuesUpsertWithPayload(t *testing.T) {
	ctx, session := setupStore(t)
	product := seedProduct(t, ctx, session, "Soap", 700, 3)

	entries := entriesFor(t, ctx, session.BranchId, product.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Op != models.SyncOpUpsert || entry.Kind != models.KindProducts {
		t.Fatalf("unexpected entry %s/%s", entry.Op, entry.Kind)
	}
	var snapshot models.Product
	if err := json.Unmarshal(entry.Payload, &snapshot); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if snapshot.Name != "Soap" || snapshot.Stock != 3 {
		t.Fatalf("payload snapshot wrong: %+v", snapshot)
	}
}

func TestPut_SupersedesPendingEntryForSameEntity(t *testing.T) {
	ctx, session := setupStore(t)
	product := seedProduct(t, ctx, session, "Rice", 2000, 10)

	product.Stock = 8
	if err := models.Put(ctx, product); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries := entriesFor(t, ctx, session.BranchId, product.ID)
	if len(entries) != 1 {
		t.Fatalf("expected superseded queue to hold one entry, got %d", len(entries))
	}
	var snapshot models.Product
	if err := json.Unmarshal(entries[0].Payload, &snapshot); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if snapshot.Stock != 8 {
		t.Fatalf("expected latest snapshot in queue, got stock %d", snapshot.Stock)
	}
}

func TestPut_RevisionsAreMonotonic(t *testing.T) {
	ctx, session := setupStore(t)
	first := seedProduct(t, ctx, session, "A", 100, 1)
	second := seedProduct(t, ctx, session, "B", 100, 1)

	a := entriesFor(t, ctx, session.BranchId, first.ID)
	b := entriesFor(t, ctx, session.BranchId, second.ID)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one entry each, got %d/%d", len(a), len(b))
	}
	if b[0].Revision <= a[0].Revision {
		t.Fatalf("expected revision to advance, got %d then %d", a[0].Revision, b[0].Revision)
	}
}

func TestPut_RemoteOriginSkipsQueue(t *testing.T) {
	ctx, session := setupStore(t)
	remoteCtx := utils.SetRemoteOriginInContext(ctx)

	product := models.Product{
		ID:        "remote-1",
		BranchId:  session.BranchId,
		Name:      "Pulled",
		SellPrice: decimal.NewFromInt(100),
	}
	if err := models.Put(remoteCtx, &product); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries := entriesFor(t, ctx, session.BranchId, product.ID)
	if len(entries) != 0 {
		t.Fatalf("expected remote write to skip the queue, got %d entries", len(entries))
	}
	got, err := models.Get[models.Product](ctx, product.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Pulled" {
		t.Fatalf("expected remote write persisted, got %+v", got)
	}
}

func TestDelete_EnqueuesDeleteOp(t *testing.T) {
	ctx, session := setupStore(t)
	product := seedProduct(t, ctx, session, "Gone", 100, 1)

	if err := models.Delete[models.Product](ctx, product.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries := entriesFor(t, ctx, session.BranchId, product.ID)
	if len(entries) != 1 {
		t.Fatalf("expected delete to supersede the upsert, got %d entries", len(entries))
	}
	if entries[0].Op != models.SyncOpDelete {
		t.Fatalf("expected delete op, got %s", entries[0].Op)
	}
	if len(entries[0].Payload) != 0 {
		t.Fatal("expected delete entry to carry no payload")
	}
}

func TestSyncQueue_FailedEntriesSurviveSupersede(t *testing.T) {
	ctx, session := setupStore(t)
	product := seedProduct(t, ctx, session, "Flaky", 100, 1)

	entries := entriesFor(t, ctx, session.BranchId, product.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if err := models.MarkSyncEntryFailed(ctx, entries[0].ID, "schema mismatch"); err != nil {
		t.Fatalf("MarkSyncEntryFailed: %v", err)
	}

	product.Stock = 5
	if err := models.Put(ctx, product); err != nil {
		t.Fatalf("Put: %v", err)
	}

	pending := entriesFor(t, ctx, session.BranchId, product.ID)
	if len(pending) != 1 {
		t.Fatalf("expected one pending entry after rewrite, got %d", len(pending))
	}
	failed, err := models.ListFailedSyncEntries(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("ListFailedSyncEntries: %v", err)
	}
	if len(failed) != 1 || failed[0].LastError != "schema mismatch" {
		t.Fatalf("expected failed entry kept, got %+v", failed)
	}

	retried, err := models.RetryFailedSyncEntries(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("RetryFailedSyncEntries: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried entry, got %d", retried)
	}
}
