package syncengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// fakeRemote stands in for the central store. Push bodies are recorded and
// answered per the configured status; pulls serve the queued pages in order.
type fakeRemote struct {
	mu         sync.Mutex
	pushed     []ChangeRecord
	pushStatus func(change ChangeRecord) int
	pages      []PullResponse
}

func (f *fakeRemote) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/changes", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodPost {
			var change ChangeRecord
			if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			status := http.StatusOK
			if f.pushStatus != nil {
				status = f.pushStatus(change)
			}
			if status == http.StatusOK {
				f.pushed = append(f.pushed, change)
			}
			w.WriteHeader(status)
			return
		}

		page := PullResponse{}
		if len(f.pages) > 0 {
			page = f.pages[0]
			f.pages = f.pages[1:]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	})
	return mux
}

func (f *fakeRemote) received() []ChangeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ChangeRecord, len(f.pushed))
	copy(out, f.pushed)
	return out
}

func setupEngine(t *testing.T, remote *fakeRemote) (context.Context, models.Session, *Engine) {
	t.Helper()
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	t.Setenv("POS_DB_PATH", filepath.Join(t.TempDir(), "pos.db"))
	t.Setenv("SYNC_REMOTE_URL", srv.URL)
	t.Setenv("SYNC_SECRET", "test-secret")
	t.Setenv("SYNC_RATE_LIMIT_PER_MIN", "60000")

	config.ConnectDatabase()
	models.MigrateTable()

	ctx := context.Background()
	branch, err := models.CreateBranch(ctx, &models.NewBranch{Name: "Register"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	session := models.Session{BranchId: branch.ID}

	client, err := NewRemoteClient()
	if err != nil {
		t.Fatalf("NewRemoteClient: %v", err)
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	engine := NewEngine(client, logger, branch.ID)
	return ctx, session, engine
}

func seedQueuedProduct(t *testing.T, ctx context.Context, session models.Session, name string) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(ctx, session, &models.NewProduct{
		Name:      name,
		Sku:       "SKU-" + name,
		SellPrice: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return product
}

func TestPushPending_DrainsQueueInRevisionOrder(t *testing.T) {
	remote := &fakeRemote{}
	ctx, session, engine := setupEngine(t, remote)
	seedQueuedProduct(t, ctx, session, "First")
	seedQueuedProduct(t, ctx, session, "Second")

	queued, _, err := models.SyncQueueDepth(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("SyncQueueDepth: %v", err)
	}

	run, err := models.StartSyncRun(ctx, session.BranchId, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("StartSyncRun: %v", err)
	}
	pushed, rejected, err := engine.pushPending(ctx, run)
	if err != nil {
		t.Fatalf("pushPending: %v", err)
	}
	if rejected != 0 {
		t.Fatalf("expected no rejections, got %d", rejected)
	}
	if int64(pushed) != queued {
		t.Fatalf("expected %d pushed, got %d", queued, pushed)
	}

	changes := remote.received()
	for i := 1; i < len(changes); i++ {
		if changes[i].Revision <= changes[i-1].Revision {
			t.Fatalf("push out of order: rev %d after %d", changes[i].Revision, changes[i-1].Revision)
		}
	}

	pending, _, err := models.SyncQueueDepth(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("SyncQueueDepth: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected empty queue after drain, got %d", pending)
	}
}

func TestPushPending_RejectionParksEntryAndContinues(t *testing.T) {
	remote := &fakeRemote{}
	ctx, session, engine := setupEngine(t, remote)
	bad := seedQueuedProduct(t, ctx, session, "Bad")
	seedQueuedProduct(t, ctx, session, "Good")

	remote.pushStatus = func(change ChangeRecord) int {
		if change.EntityId == bad.ID {
			return http.StatusUnprocessableEntity
		}
		return http.StatusOK
	}

	run, err := models.StartSyncRun(ctx, session.BranchId, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("StartSyncRun: %v", err)
	}
	_, rejected, err := engine.pushPending(ctx, run)
	if err != nil {
		t.Fatalf("pushPending: %v", err)
	}
	if rejected != 1 {
		t.Fatalf("expected 1 rejection, got %d", rejected)
	}

	pending, failed, err := models.SyncQueueDepth(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("SyncQueueDepth: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected rejection not to stop the drain, %d still pending", pending)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed entry, got %d", failed)
	}

	entries, err := models.ListFailedSyncEntries(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("ListFailedSyncEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].EntityId != bad.ID {
		t.Fatalf("expected the bad entry parked, got %+v", entries)
	}
}

func TestPushPending_TransientErrorKeepsQueue(t *testing.T) {
	remote := &fakeRemote{
		pushStatus: func(ChangeRecord) int { return http.StatusInternalServerError },
	}
	ctx, session, engine := setupEngine(t, remote)
	seedQueuedProduct(t, ctx, session, "Stuck")

	before, _, err := models.SyncQueueDepth(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("SyncQueueDepth: %v", err)
	}

	run, err := models.StartSyncRun(ctx, session.BranchId, models.SyncTriggeredTimer)
	if err != nil {
		t.Fatalf("StartSyncRun: %v", err)
	}
	pushed, _, pushErr := engine.pushPending(ctx, run)
	if pushErr == nil {
		t.Fatal("expected transient error")
	}
	if pushed != 0 {
		t.Fatalf("expected nothing acknowledged, got %d", pushed)
	}

	after, _, err := models.SyncQueueDepth(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("SyncQueueDepth: %v", err)
	}
	if after != before {
		t.Fatalf("expected queue untouched, had %d now %d", before, after)
	}
}

func TestPushPending_AuthErrorStopsCycle(t *testing.T) {
	remote := &fakeRemote{
		pushStatus: func(ChangeRecord) int { return http.StatusUnauthorized },
	}
	ctx, session, engine := setupEngine(t, remote)
	seedQueuedProduct(t, ctx, session, "Locked")

	run, err := models.StartSyncRun(ctx, session.BranchId, models.SyncTriggeredTimer)
	if err != nil {
		t.Fatalf("StartSyncRun: %v", err)
	}
	_, _, pushErr := engine.pushPending(ctx, run)
	if pushErr != ErrSyncAuth {
		t.Fatalf("expected ErrSyncAuth, got %v", pushErr)
	}

	engine.SetOnline(true)
	engine.settle(pushErr)
	engine.mu.Lock()
	backoff, state := engine.backoff, engine.state
	engine.mu.Unlock()
	if backoff != engine.MaxBackoff {
		t.Fatalf("expected auth failure pinned at max backoff, got %s", backoff)
	}
	if state != StateBackoff {
		t.Fatalf("expected backoff state, got %s", state)
	}
}

func TestSettle_BackoffGrowsAndClears(t *testing.T) {
	remote := &fakeRemote{}
	_, _, engine := setupEngine(t, remote)
	engine.SetOnline(true)

	engine.settle(context.DeadlineExceeded)
	first := engine.backoff
	engine.state = StateSyncing
	engine.settle(context.DeadlineExceeded)
	second := engine.backoff
	if first != engine.InitialBackoff || second != 2*first {
		t.Fatalf("expected backoff %s then %s, got %s then %s",
			engine.InitialBackoff, 2*engine.InitialBackoff, first, second)
	}

	engine.state = StateSyncing
	engine.settle(nil)
	if engine.backoff != 0 || engine.state != StateIdle {
		t.Fatalf("expected clean settle to clear backoff, got %s/%s", engine.backoff, engine.state)
	}
}

func TestPullRemote_AppliesChangesAndAdvancesWatermark(t *testing.T) {
	remote := &fakeRemote{}
	ctx, session, engine := setupEngine(t, remote)

	incoming := models.Product{
		ID:        "hq-product-1",
		BranchId:  session.BranchId,
		Name:      "Pulled Product",
		Sku:       "HQ-1",
		SellPrice: decimal.NewFromInt(900),
		Stock:     4,
	}
	payload, err := json.Marshal(incoming)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	remote.pages = []PullResponse{{
		Changes: []ChangeRecord{{
			BranchId:  "hq",
			Kind:      models.KindProducts,
			EntityId:  incoming.ID,
			Op:        models.SyncOpUpsert,
			Payload:   payload,
			ServerSeq: "41",
		}},
		NextCursor: "41",
		HasMore:    false,
	}}

	pendingBefore, _, err := models.SyncQueueDepth(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("SyncQueueDepth: %v", err)
	}

	pulled, err := engine.pullRemote(ctx)
	if err != nil {
		t.Fatalf("pullRemote: %v", err)
	}
	if pulled != 1 {
		t.Fatalf("expected 1 change applied, got %d", pulled)
	}

	got, err := models.GetProduct(ctx, incoming.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Name != "Pulled Product" || got.Stock != 4 {
		t.Fatalf("pulled product wrong: %+v", got)
	}

	state, err := models.GetSyncState(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("GetSyncState: %v", err)
	}
	if state.PullWatermark != "41" {
		t.Fatalf("expected watermark 41, got %q", state.PullWatermark)
	}

	pendingAfter, _, err := models.SyncQueueDepth(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("SyncQueueDepth: %v", err)
	}
	if pendingAfter != pendingBefore {
		t.Fatal("expected pulled writes to stay out of the push queue")
	}
}

func TestPullRemote_UnknownKindSkipped(t *testing.T) {
	remote := &fakeRemote{}
	ctx, _, engine := setupEngine(t, remote)
	remote.pages = []PullResponse{{
		Changes: []ChangeRecord{{
			Kind:     models.EntityKind("gift_cards"),
			EntityId: "g1",
			Op:       models.SyncOpUpsert,
			Payload:  json.RawMessage(`{}`),
		}},
		NextCursor: "7",
		HasMore:    false,
	}}

	pulled, err := engine.pullRemote(ctx)
	if err != nil {
		t.Fatalf("pullRemote: %v", err)
	}
	if pulled != 0 {
		t.Fatalf("expected unknown kind skipped, got %d applied", pulled)
	}
}

func TestPullRemote_DoubleRefundRaisesConflict(t *testing.T) {
	remote := &fakeRemote{}
	ctx, session, engine := setupEngine(t, remote)
	user, err := models.CreateUser(ctx, session, &models.NewUser{
		Name: "Cashier", Role: models.UserRoleCashier, Pin: "1234",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	session.UserId = user.ID
	if _, err := models.OpenShift(ctx, session, decimal.Zero); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}
	product := seedQueuedProduct(t, ctx, session, "Contested")
	product.Stock = 5
	if err := models.Put(ctx, product); err != nil {
		t.Fatalf("Put: %v", err)
	}

	sale, err := models.RecordSale(ctx, session, &models.NewSale{
		Items:          []models.NewSaleItem{{ProductId: product.ID, Qty: 1}},
		PaymentMethod:  models.PaymentMethodCash,
		AmountReceived: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	if _, err := models.RecordRefund(ctx, session, &models.NewRefund{TransactionId: sale.ID}); err != nil {
		t.Fatalf("RecordRefund: %v", err)
	}

	// another register refunded the same sale before syncing
	foreign := models.Transaction{
		ID:              "remote-refund-1",
		BranchId:        session.BranchId,
		Type:            models.TransactionTypeRefund,
		RefundOfId:      sale.ID,
		Total:           sale.Total,
		TransactionTime: time.Now(),
	}
	payload, err := json.Marshal(foreign)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	remote.pages = []PullResponse{{
		Changes: []ChangeRecord{{
			BranchId: "other-register",
			Kind:     models.KindTransactions,
			EntityId: foreign.ID,
			Op:       models.SyncOpUpsert,
			Payload:  payload,
		}},
		NextCursor: "9",
		HasMore:    false,
	}}

	if _, err := engine.pullRemote(ctx); err != nil {
		t.Fatalf("pullRemote: %v", err)
	}

	// the ledger keeps both refunds; the clash is surfaced for review
	if _, err := models.GetTransaction(ctx, foreign.ID); err != nil {
		t.Fatalf("expected foreign refund inserted: %v", err)
	}
	conflicts, err := models.ListOpenSyncConflicts(ctx, session.BranchId)
	if err != nil {
		t.Fatalf("ListOpenSyncConflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected one open conflict, got %d", len(conflicts))
	}
	if conflicts[0].EntityId != sale.ID {
		t.Fatalf("expected conflict keyed on the sale, got %s", conflicts[0].EntityId)
	}
}

func TestLastWriterWins_StaleRemoteDoesNotOverwriteNewerLocal(t *testing.T) {
	remote := &fakeRemote{}
	ctx, session, _ := setupEngine(t, remote)

	product := seedQueuedProduct(t, ctx, session, "Lantern")

	stale := *product
	stale.Name = "Lantern (old)"
	stale.UpdatedAt = product.UpdatedAt.Add(-24 * time.Hour)
	payload, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	err = lastWriterWins[models.Product]{}.Apply(ctx, ChangeRecord{
		BranchId: "hq",
		Kind:     models.KindProducts,
		EntityId: product.ID,
		Op:       models.SyncOpUpsert,
		Payload:  payload,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Name != "Lantern" {
		t.Fatalf("stale change overwrote local row: %q", got.Name)
	}
}

func TestLastWriterWins_NewerRemoteReplacesLocal(t *testing.T) {
	remote := &fakeRemote{}
	ctx, session, _ := setupEngine(t, remote)

	product := seedQueuedProduct(t, ctx, session, "Kettle")

	fresh := *product
	fresh.Name = "Kettle (renamed)"
	fresh.UpdatedAt = product.UpdatedAt.Add(time.Hour)
	payload, err := json.Marshal(fresh)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	err = lastWriterWins[models.Product]{}.Apply(ctx, ChangeRecord{
		BranchId: "hq",
		Kind:     models.KindProducts,
		EntityId: product.ID,
		Op:       models.SyncOpUpsert,
		Payload:  payload,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got.Name != "Kettle (renamed)" {
		t.Fatalf("newer change not applied: %q", got.Name)
	}
}
