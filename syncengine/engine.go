package syncengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/sirupsen/logrus"
)

type EngineState string

const (
	StateOffline EngineState = "offline"
	StateIdle    EngineState = "idle"
	StateSyncing EngineState = "syncing"
	StateBackoff EngineState = "backoff"
)

// Engine owns the push/pull cycle for one branch. At most one cycle runs at
// a time; manual triggers and the timer funnel through the same kick
// channel so they can never overlap.
type Engine struct {
	Client         *RemoteClient
	Logger         *logrus.Logger
	BranchId       string
	PollInterval   time.Duration
	BatchSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	mu      sync.Mutex
	state   EngineState
	online  bool
	backoff time.Duration
	nextAt  time.Time
	lastErr string

	kick chan string
}

func NewEngine(client *RemoteClient, logger *logrus.Logger, branchId string) *Engine {
	return &Engine{
		Client:         client,
		Logger:         logger,
		BranchId:       branchId,
		PollInterval:   30 * time.Second,
		BatchSize:      100,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
		state:          StateOffline,
		kick:           make(chan string, 1),
	}
}

// Status is the register UI's view of the engine.
type Status struct {
	State         EngineState `json:"state"`
	Online        bool        `json:"online"`
	Pending       int64       `json:"pending"`
	Failed        int64       `json:"failed"`
	LastError     string      `json:"last_error,omitempty"`
	PullWatermark string      `json:"pull_watermark"`
	LastSyncAt    *time.Time  `json:"last_sync_at"`
	LastSuccessAt *time.Time  `json:"last_success_at"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	pending, failed, err := models.SyncQueueDepth(ctx, e.BranchId)
	if err != nil {
		return Status{}, err
	}
	state, err := models.GetSyncState(ctx, e.BranchId)
	if err != nil {
		return Status{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:         e.state,
		Online:        e.online,
		Pending:       pending,
		Failed:        failed,
		LastError:     e.lastErr,
		PullWatermark: state.PullWatermark,
		LastSyncAt:    state.LastSyncAt,
		LastSuccessAt: state.LastSuccessAt,
	}, nil
}

// SetOnline flips connectivity. Going online triggers an immediate cycle
// and clears any backoff; going offline parks the engine without touching
// the queue.
func (e *Engine) SetOnline(online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	if online {
		e.backoff = 0
		e.nextAt = time.Time{}
		if e.state == StateOffline || e.state == StateBackoff {
			e.state = StateIdle
		}
	} else {
		e.state = StateOffline
	}
	e.mu.Unlock()

	if online && !wasOnline {
		e.trigger(models.SyncTriggeredConnectivity)
	}
}

// SyncNow requests a cycle outside the timer. A no-op while offline.
func (e *Engine) SyncNow() {
	e.mu.Lock()
	online := e.online
	e.mu.Unlock()
	if online {
		e.trigger(models.SyncTriggeredManual)
	}
}

func (e *Engine) trigger(reason string) {
	select {
	case e.kick <- reason:
	default:
	}
}

// Run drives the cycle until the context ends. Timer ticks respect the
// backoff window; manual and connectivity kicks bypass it.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-e.kick:
			e.runCycle(ctx, reason)
		case <-time.After(e.PollInterval):
			e.mu.Lock()
			ready := e.online && (e.nextAt.IsZero() || time.Now().After(e.nextAt))
			e.mu.Unlock()
			if ready {
				e.runCycle(ctx, models.SyncTriggeredTimer)
			}
		}
	}
}

func (e *Engine) runCycle(ctx context.Context, reason string) {
	e.mu.Lock()
	if !e.online || e.state == StateSyncing {
		e.mu.Unlock()
		return
	}
	e.state = StateSyncing
	e.mu.Unlock()

	run, err := models.StartSyncRun(ctx, e.BranchId, reason)
	if err != nil {
		e.settle(err)
		return
	}

	pushed, rejected, pushErr := e.pushPending(ctx, run)
	run.Pushed = pushed
	run.Failed = rejected

	var pullErr error
	if pushErr == nil {
		run.Pulled, pullErr = e.pullRemote(ctx)
	}

	cycleErr := pushErr
	if cycleErr == nil {
		cycleErr = pullErr
	}

	_ = models.TouchSyncState(ctx, e.BranchId, cycleErr == nil)

	switch {
	case cycleErr != nil:
		_ = models.FinishSyncRun(ctx, run, models.SyncRunStatusFailed, cycleErr.Error())
	case rejected > 0:
		_ = models.FinishSyncRun(ctx, run, models.SyncRunStatusPartial, "")
	default:
		_ = models.FinishSyncRun(ctx, run, models.SyncRunStatusSuccess, "")
	}
	e.settle(cycleErr)
}

// settle moves the engine out of StateSyncing, growing or clearing the
// backoff window based on the cycle outcome.
func (e *Engine) settle(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		e.backoff = 0
		e.nextAt = time.Time{}
		e.lastErr = ""
		if e.online {
			e.state = StateIdle
		} else {
			e.state = StateOffline
		}
		return
	}

	e.lastErr = err.Error()
	if errors.Is(err, ErrSyncAuth) {
		// credentials will not fix themselves; hold at max backoff
		e.backoff = e.MaxBackoff
	} else if e.backoff == 0 {
		e.backoff = e.InitialBackoff
	} else {
		e.backoff *= 2
		if e.backoff > e.MaxBackoff {
			e.backoff = e.MaxBackoff
		}
	}
	e.nextAt = time.Now().Add(e.backoff)
	if e.online {
		e.state = StateBackoff
	} else {
		e.state = StateOffline
	}

	if e.Logger != nil {
		e.Logger.WithFields(logrus.Fields{
			"field":   "SyncEngine",
			"branch":  e.BranchId,
			"next_at": e.nextAt.Format(time.RFC3339),
		}).Error("sync cycle failed: " + err.Error())
	}
}
