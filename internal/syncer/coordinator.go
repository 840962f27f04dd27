// Package syncer keeps the remote document in step with local state: it debounces
// automatic pushes after every committed change and runs user-triggered push and pull.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/logistics-keeper/internal/errs"
	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/notify"
)

// DefaultDebounce is the quiet period after the last change before an automatic push.
const DefaultDebounce = 2 * time.Second

// Remote is the document API used for pushes and pulls.
type Remote interface {
	CreateDocument(ctx context.Context, token string, content any) (string, error)
	UpdateDocument(ctx context.Context, token, id string, content any) error
	ReadDocument(ctx context.Context, token, id string) (json.RawMessage, error)
}

// CredentialStore persists remembered credentials.
type CredentialStore interface {
	Load(ctx context.Context) model.SyncCredentials
	Save(ctx context.Context, c model.SyncCredentials) error
	Clear(ctx context.Context) error
}

// Source provides the current application state for manual pushes.
type Source interface {
	Snapshot() model.AppState
}

// Stager receives pulled documents. It validates and stages; it never applies.
type Stager interface {
	Stage(payload []byte) (model.AppState, error)
}

// Options tune a Coordinator. Zero values select defaults.
type Options struct {
	Debounce     time.Duration
	Retries      uint64        // transient transport retries per remote call
	RetryBackoff time.Duration // initial retry interval
	Timeout      time.Duration // per automatic push, retries included
	Registerer   prometheus.Registerer
	Notifier     notify.Notifier
	Logger       *zap.Logger
}

// SyncRequest carries the user's input for a manual push or pull.
type SyncRequest struct {
	Token      string
	DocumentID string
	Remember   bool
}

// Coordinator owns sync status, credentials and the single debounce timer.
type Coordinator struct {
	remote Remote
	vault  CredentialStore
	src    Source
	stager Stager

	debounce     time.Duration
	retries      uint64
	retryBackoff time.Duration
	timeout      time.Duration
	notifier     notify.Notifier
	log          *zap.Logger
	m            *metrics

	mu      sync.Mutex
	creds   model.SyncCredentials
	status  model.SyncStatus
	mounted bool
	timer   *time.Timer
	pending *model.AppState
	gen     uint64
	closed  bool
	wg      sync.WaitGroup

	// pushMu serializes remote writes so responses cannot be applied out of order.
	pushMu sync.Mutex
}

// New builds a coordinator and loads remembered credentials.
func New(ctx context.Context, r Remote, creds CredentialStore, src Source, stager Stager, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{L: opts.Logger}
	}
	c := &Coordinator{
		remote:       r,
		vault:        creds,
		src:          src,
		stager:       stager,
		debounce:     opts.Debounce,
		retries:      opts.Retries,
		retryBackoff: opts.RetryBackoff,
		timeout:      opts.Timeout,
		notifier:     opts.Notifier,
		log:          opts.Logger.Named("syncer"),
		m:            newMetrics(opts.Registerer),
		creds:        creds.Load(ctx),
	}
	c.setStatus(model.SyncIdle)
	return c
}

// Observe is the state subscription callback. The first call is the load-time
// observation and never pushes; later calls (re)arm the debounce timer when
// credentials are present. The snapshot of the trailing call is the one pushed.
func (c *Coordinator) Observe(snapshot model.AppState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if !c.mounted {
		c.mounted = true
		if !c.creds.Empty() {
			c.setStatusLocked(model.SyncSynced)
		}
		return
	}
	if c.creds.Empty() {
		return
	}
	snap := snapshot.Clone()
	c.pending = &snap
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.pending == nil {
		c.mu.Unlock()
		return
	}
	snap := *c.pending
	c.pending, c.timer = nil, nil
	creds := c.creds
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	if creds.Empty() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_ = c.push(ctx, triggerAuto, creds, gen, snap)
}

// push writes snap to the existing document. Any failure disables automatic sync.
// A push queued behind another one is dropped when the credentials were cleared or
// replaced meanwhile, or when a newer change has superseded its generation.
func (c *Coordinator) push(ctx context.Context, trigger string, creds model.SyncCredentials, gen uint64, snap model.AppState) error {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.mu.Lock()
	stale := c.creds.Empty() || c.creds != creds || c.gen != gen
	c.mu.Unlock()
	if stale {
		c.log.Debug("queued push dropped", zap.String("trigger", trigger))
		return nil
	}

	c.setStatus(model.SyncSyncing)
	start := time.Now()
	err := c.retry(ctx, func(ctx context.Context) error {
		return c.remote.UpdateDocument(ctx, creds.Token, creds.DocumentID, snap)
	})
	c.m.observe(trigger, time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Warn("push failed", zap.String("trigger", trigger), zap.Error(err))
		c.fail(ctx, "Auto-sync failed: "+errs.Message(err), true)
		return err
	}
	c.log.Debug("pushed", zap.String("trigger", trigger), zap.Int("orders", len(snap.Orders)))
	c.setStatus(model.SyncSynced)
	return nil
}

// Sync pushes the current state now, bypassing the debounce. It updates the given
// document or creates a new one and returns the document id. With Remember the
// credentials are stored and automatic sync is enabled; otherwise they are forgotten.
func (c *Coordinator) Sync(ctx context.Context, req SyncRequest) (string, error) {
	if req.Token == "" {
		return "", fmt.Errorf("%w: token is required", errs.ErrValidation)
	}
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.setStatus(model.SyncSyncing)
	snap := c.src.Snapshot()
	start := time.Now()

	id := req.DocumentID
	var err error
	if id != "" {
		err = c.retry(ctx, func(ctx context.Context) error {
			return c.remote.UpdateDocument(ctx, req.Token, id, snap)
		})
	} else {
		// Create is not idempotent, a retried POST could leave a second document behind.
		id, err = c.remote.CreateDocument(ctx, req.Token, snap)
	}
	c.m.observe(triggerManual, time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Warn("manual sync failed", zap.Error(err))
		c.fail(ctx, "Sync failed: "+errs.Message(err), req.Remember)
		return "", err
	}

	if err := c.remember(ctx, req, id); err != nil {
		return id, err
	}
	c.dropPending()
	c.setStatus(model.SyncSynced)
	c.notifier.Notify(notify.Success, "Data synced to remote document "+id+".")
	return id, nil
}

// Load pulls the document and stages it for a confirmed restore. Nothing is applied.
func (c *Coordinator) Load(ctx context.Context, req SyncRequest) (model.AppState, error) {
	if req.Token == "" || req.DocumentID == "" {
		return model.AppState{}, fmt.Errorf("%w: token and document id are required", errs.ErrValidation)
	}
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.setStatus(model.SyncSyncing)
	start := time.Now()
	var raw json.RawMessage
	err := c.retry(ctx, func(ctx context.Context) error {
		var rerr error
		raw, rerr = c.remote.ReadDocument(ctx, req.Token, req.DocumentID)
		return rerr
	})
	var staged model.AppState
	if err == nil {
		staged, err = c.stager.Stage(raw)
	}
	c.m.observe(triggerPull, time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Warn("load failed", zap.Error(err))
		c.fail(ctx, "Load failed: "+errs.Message(err), req.Remember)
		return model.AppState{}, err
	}

	if err := c.remember(ctx, req, req.DocumentID); err != nil {
		return staged, err
	}
	c.setStatus(model.SyncSynced)
	c.notifier.Notify(notify.Info, "Data loaded from remote document, confirm to restore.")
	return staged, nil
}

func (c *Coordinator) remember(ctx context.Context, req SyncRequest, id string) error {
	var (
		creds model.SyncCredentials
		err   error
	)
	if req.Remember {
		creds = model.SyncCredentials{Token: req.Token, DocumentID: id}
		err = c.vault.Save(ctx, creds)
	} else {
		err = c.vault.Clear(ctx)
	}
	if err != nil {
		c.log.Warn("persist credentials failed", zap.Error(err))
	}
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
	return err
}

// fail optionally forgets credentials, notifies the user and records the error status.
func (c *Coordinator) fail(ctx context.Context, msg string, clear bool) {
	if clear {
		c.mu.Lock()
		c.creds = model.SyncCredentials{}
		c.mu.Unlock()
		c.dropPending()
		// The push context may be the cause of the failure.
		if err := c.vault.Clear(context.WithoutCancel(ctx)); err != nil {
			c.log.Warn("clear credentials failed", zap.Error(err))
		}
	}
	c.notifier.Notify(notify.Error, msg)
	c.setStatus(model.SyncError)
}

func (c *Coordinator) dropPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.gen++
}

// retry runs op, retrying transport errors with exponential backoff.
func (c *Coordinator) retry(ctx context.Context, op func(context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryBackoff
	b := backoff.WithMaxRetries(exp, c.retries)
	b.Reset()
	for {
		err := op(ctx)
		// WithMaxRetries treats zero as unlimited.
		if err == nil || c.retries == 0 || !transient(err) {
			return err
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		c.m.retries.Inc()
		c.log.Debug("retrying remote call", zap.Duration("wait", wait), zap.Error(err))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

// transient reports whether err came from the transport rather than the API or payload.
func transient(err error) bool {
	var (
		apiErr *errs.RemoteAPIError
		docErr *errs.DocumentFormatError
		bakErr *errs.BackupFormatError
	)
	switch {
	case errors.As(err, &apiErr), errors.As(err, &docErr), errors.As(err, &bakErr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// Flush pushes a pending debounced snapshot immediately. No-op when nothing is pending.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil
	}
	snap := *c.pending
	creds := c.creds
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if creds.Empty() {
		return nil
	}
	return c.push(ctx, triggerFlush, creds, gen, snap)
}

// Close stops the timer, waits for an in-flight automatic push and flushes pending work.
// Observe is a no-op afterwards.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	pending := c.pending
	c.pending = nil
	creds := c.creds
	gen := c.gen
	c.mu.Unlock()

	c.wg.Wait()
	if pending == nil || creds.Empty() {
		return nil
	}
	return c.push(ctx, triggerFlush, creds, gen, *pending)
}

// Status returns the live sync status.
func (c *Coordinator) Status() model.SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Credentials returns the credentials automatic sync currently uses.
func (c *Coordinator) Credentials() model.SyncCredentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// Pending reports whether a debounced push is scheduled.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Coordinator) setStatus(s model.SyncStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStatusLocked(s)
}

func (c *Coordinator) setStatusLocked(s model.SyncStatus) {
	c.status = s
	c.m.setStatus(s)
}
