// Package reconcile runs reconciliation passes: it pulls an address's recent
// signatures and backend orders, classifies what is new, merges everything into
// the committed activity set and reports the status changes that result.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/backend"
	"github.com/brojonat/txfeed/service/metrics"
	"github.com/google/uuid"
)

// ErrPassAbandoned is returned when the context ends before the pass commits.
// Nothing from an abandoned pass is persisted.
var ErrPassAbandoned = errors.New("reconciliation pass abandoned before commit")

// postCommitTimeout bounds the work that follows a commit: cache invalidation,
// backend patches and event publication. It runs detached from the caller's
// context so a dropped request cannot lose them.
const postCommitTimeout = 30 * time.Second

// SignatureSource lists recent signatures of an address.
type SignatureSource interface {
	ListSignatures(ctx context.Context, address string, limit int) ([]activity.SignatureInfo, error)
}

// TransactionSource fetches parsed transactions, index-aligned with the request.
// A nil entry means the transaction is not available.
type TransactionSource interface {
	GetParsedTransactions(ctx context.Context, signatures []string) ([]*activity.ParsedTransaction, error)
}

// OrderSource reads and updates backend orders.
type OrderSource interface {
	ListOrders(ctx context.Context, address string) ([]activity.BackendOrder, error)
	PatchOrder(ctx context.Context, id string, patch backend.OrderPatch) error
}

// StateStore persists committed activity sets.
type StateStore interface {
	LoadActivities(ctx context.Context, address string) (map[string]activity.Activity, error)
	SaveActivities(ctx context.Context, address string, set map[string]activity.Activity) error
}

// TimelineCache caches sorted timelines between passes.
type TimelineCache interface {
	Get(ctx context.Context, address string) ([]activity.Activity, bool, error)
	Set(ctx context.Context, address string, list []activity.Activity) error
	Invalidate(ctx context.Context, address string) error
}

// EventPublisher announces committed status changes.
type EventPublisher interface {
	PublishStatusChanges(ctx context.Context, address, network string, changes []activity.StatusChange) error
}

// Deps are the collaborators of an Engine. Cache and Publisher are optional.
type Deps struct {
	Signatures   SignatureSource
	Transactions TransactionSource
	Orders       OrderSource
	Store        StateStore
	Cache        TimelineCache
	Publisher    EventPublisher
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Options tune a pass.
type Options struct {
	// Network labels every activity the engine produces. SelectedAddress is
	// filled in per pass.
	Network activity.ClassifyContext

	// SignatureLimit bounds the signatures listed per pass.
	SignatureLimit int
}

// PassResult summarises a committed pass.
type PassResult struct {
	PassID      string                  `json:"pass_id"`
	Address     string                  `json:"address"`
	Listed      int                     `json:"listed"`
	Fetched     int                     `json:"fetched"`
	Orders      int                     `json:"orders"`
	Total       int                     `json:"total"`
	Changes     []activity.StatusChange `json:"changes"`
	PatchErrors int                     `json:"patch_errors"`
	Duration    time.Duration           `json:"duration"`
}

// Engine runs reconciliation passes. Passes for different addresses run
// independently; passes for the same address are serialised.
type Engine struct {
	deps Deps
	opts Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an Engine.
func NewEngine(deps Deps, opts Options) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.SignatureLimit <= 0 {
		opts.SignatureLimit = 50
	}
	return &Engine{deps: deps, opts: opts, locks: make(map[string]*sync.Mutex)}
}

func (e *Engine) lockFor(address string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[address]
	if !ok {
		l = &sync.Mutex{}
		e.locks[address] = l
	}
	return l
}

func (e *Engine) classifyContext(address string) activity.ClassifyContext {
	cc := e.opts.Network
	cc.SelectedAddress = address
	return cc
}

// Run executes one reconciliation pass for address.
//
// Signature and transaction fetch errors fail the pass. Backend errors are
// logged and the pass continues with on-chain data only. The store write is
// the commit point: if ctx ends before it, ErrPassAbandoned is returned and
// nothing is written. Only entries that are new or differ from the stored
// record are written. Backend patches and events follow the commit, survive
// cancellation of ctx and never undo it.
func (e *Engine) Run(ctx context.Context, address string) (*PassResult, error) {
	lock := e.lockFor(address)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result := &PassResult{PassID: uuid.NewString(), Address: address}
	logger := e.deps.Logger.With("pass_id", result.PassID, "address", address)

	outcome := "failed"
	defer func() { e.deps.Metrics.RecordPass(outcome, time.Since(start).Seconds()) }()

	cc := e.classifyContext(address)

	existing, err := e.deps.Store.LoadActivities(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}

	listed, err := e.deps.Signatures.ListSignatures(ctx, address, e.opts.SignatureLimit)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	result.Listed = len(listed)

	onchain, err := e.fetchOnchain(ctx, existing, listed, cc)
	if err != nil {
		return nil, err
	}
	result.Fetched = len(onchain)

	fromBackend := e.fetchBackend(ctx, logger, address, cc)
	result.Orders = len(fromBackend)

	merged, changes := activity.Merge(existing, fromBackend, onchain)

	if err := ctx.Err(); err != nil {
		outcome = "abandoned"
		logger.WarnContext(ctx, "reconciliation pass abandoned", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPassAbandoned, err)
	}

	touched := activity.Touched(existing, merged)
	if err := e.deps.Store.SaveActivities(ctx, address, touched); err != nil {
		return nil, fmt.Errorf("save activities: %w", err)
	}
	outcome = "ok"
	result.Total = len(merged)
	result.Changes = changes
	e.deps.Metrics.RecordActivitiesPersisted(cc.Network, len(touched))

	post, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	if e.deps.Cache != nil && len(touched) > 0 {
		if err := e.deps.Cache.Invalidate(post, address); err != nil {
			logger.WarnContext(post, "failed to invalidate timeline cache", "error", err)
		}
	}

	result.PatchErrors = e.notifyBackend(post, logger, changes)
	e.publish(post, logger, address, cc.Network, changes)

	result.Duration = time.Since(start)
	logger.InfoContext(post, "reconciliation pass committed",
		"listed", result.Listed,
		"fetched", result.Fetched,
		"orders", result.Orders,
		"written", len(touched),
		"total", result.Total,
		"status_changes", len(changes),
		"patch_errors", result.PatchErrors,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// fetchOnchain fetches and classifies the listed signatures that still need it.
func (e *Engine) fetchOnchain(ctx context.Context, existing map[string]activity.Activity, listed []activity.SignatureInfo, cc activity.ClassifyContext) ([]activity.Activity, error) {
	pending := activity.SignaturesToFetch(existing, listed)
	if len(pending) == 0 {
		return nil, nil
	}

	sigs := make([]string, len(pending))
	for i, info := range pending {
		sigs[i] = info.Signature
	}

	txs, err := e.deps.Transactions.GetParsedTransactions(ctx, sigs)
	if err != nil {
		return nil, fmt.Errorf("get parsed transactions: %w", err)
	}
	if len(txs) != len(pending) {
		return nil, fmt.Errorf("get parsed transactions: got %d results for %d signatures", len(txs), len(pending))
	}

	out := make([]activity.Activity, len(pending))
	missing := 0
	for i, info := range pending {
		if txs[i] == nil {
			missing++
		}
		out[i] = activity.Classify(txs[i], info, cc)
		e.deps.Metrics.RecordActivityClassified(out[i].Type)
	}
	e.deps.Metrics.RecordTransactionsFetched(len(pending)-missing, missing)
	return out, nil
}

// fetchBackend returns the backend orders for address formatted as activities.
// Errors are logged and yield no records.
func (e *Engine) fetchBackend(ctx context.Context, logger *slog.Logger, address string, cc activity.ClassifyContext) []activity.Activity {
	if e.deps.Orders == nil {
		return nil
	}
	orders, err := e.deps.Orders.ListOrders(ctx, address)
	if err != nil {
		logger.WarnContext(ctx, "failed to list backend orders, continuing with on-chain data", "error", err)
		return nil
	}

	out := make([]activity.Activity, 0, len(orders))
	skipped := 0
	for _, o := range orders {
		a, ok := activity.FromBackendOrder(o, cc)
		if !ok {
			skipped++
			continue
		}
		out = append(out, a)
	}
	if skipped > 0 {
		logger.DebugContext(ctx, "skipped backend orders without signature", "count", skipped)
	}
	return out
}

// notifyBackend pushes every status change to the backend and returns the
// number of failed patches. No patch is retried within the pass.
func (e *Engine) notifyBackend(ctx context.Context, logger *slog.Logger, changes []activity.StatusChange) int {
	failed := 0
	for _, c := range changes {
		e.deps.Metrics.RecordStatusChange(string(c.Status))
		if e.deps.Orders == nil {
			continue
		}
		err := e.deps.Orders.PatchOrder(ctx, c.ActivityID, backend.OrderPatch{Status: c.Status, UpdatedAt: c.UpdatedAt})
		if err != nil {
			failed++
			logger.WarnContext(ctx, "failed to patch backend order",
				"activity_id", c.ActivityID,
				"signature", c.Signature,
				"status", c.Status,
				"error", err,
			)
		}
	}
	return failed
}

func (e *Engine) publish(ctx context.Context, logger *slog.Logger, address, network string, changes []activity.StatusChange) {
	if e.deps.Publisher == nil || len(changes) == 0 {
		return
	}
	if err := e.deps.Publisher.PublishStatusChanges(ctx, address, network, changes); err != nil {
		logger.WarnContext(ctx, "failed to publish status changes", "error", err)
	}
}

// GetMergedActivities returns the committed timeline of address, newest first.
// The cache is consulted first and filled on a miss; cache errors fall back to
// the store. The cache is only filled while no pass holds the address, so a
// fill read before a commit cannot land after that commit's invalidation.
func (e *Engine) GetMergedActivities(ctx context.Context, address string) ([]activity.Activity, error) {
	if e.deps.Cache == nil {
		return e.loadSorted(ctx, address)
	}

	list, ok, err := e.deps.Cache.Get(ctx, address)
	switch {
	case err != nil:
		e.deps.Logger.WarnContext(ctx, "timeline cache read failed", "address", address, "error", err)
	case ok:
		return list, nil
	}

	lock := e.lockFor(address)
	if !lock.TryLock() {
		// A pass is running; serve from the store and leave the cache to the next read.
		return e.loadSorted(ctx, address)
	}
	defer lock.Unlock()

	list, err = e.loadSorted(ctx, address)
	if err != nil {
		return nil, err
	}
	if err := e.deps.Cache.Set(ctx, address, list); err != nil {
		e.deps.Logger.WarnContext(ctx, "timeline cache write failed", "address", address, "error", err)
	}
	return list, nil
}

func (e *Engine) loadSorted(ctx context.Context, address string) ([]activity.Activity, error) {
	set, err := e.deps.Store.LoadActivities(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	return activity.Sorted(set), nil
}
