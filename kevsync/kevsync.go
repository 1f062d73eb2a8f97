// Package kevsync orchestrates one synchronization run: fetch the KEV
// feed, validate it against the catalog schema, parse it, reconcile it
// against the persisted identifier set, and apply the result to the store.
package kevsync

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/vulnwatch/kevsync/fetch"
	"github.com/vulnwatch/kevsync/kev"
	"github.com/vulnwatch/kevsync/reconcile"
	"github.com/vulnwatch/kevsync/store"
)

const (
	defaultRetry       = 5
	defaultConcurrency = 8
)

type options struct {
	feedURL     string
	schemaURL   string
	retry       int
	concurrency int
	appFs       afero.Fs
}

type option func(*options)

func WithFeedURL(url string) option {
	return func(opts *options) { opts.feedURL = url }
}

// WithSchemaURL sets the schema source: an http(s) URL or a local file path.
func WithSchemaURL(url string) option {
	return func(opts *options) { opts.schemaURL = url }
}

func WithRetry(retry int) option {
	return func(opts *options) { opts.retry = retry }
}

// WithConcurrency bounds the number of store writes in flight during the
// apply phase.
func WithConcurrency(n int) option {
	return func(opts *options) {
		if n > 0 {
			opts.concurrency = n
		}
	}
}

func WithAppFs(fs afero.Fs) option {
	return func(opts *options) { opts.appFs = fs }
}

// Syncer runs the sync pipeline against a single store. Overlapping runs
// of the same Syncer are not serialized here; callers needing
// at-most-one-run semantics must guard invocations externally.
type Syncer struct {
	*options
	store store.Store
}

func New(st store.Store, opts ...option) Syncer {
	o := &options{
		feedURL:     kev.DefaultFeedURL,
		schemaURL:   kev.DefaultSchemaURL,
		retry:       defaultRetry,
		concurrency: defaultConcurrency,
		appFs:       afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return Syncer{options: o, store: st}
}

// Do executes one full sync run. Stage-fatal failures return a *StageError
// and leave the store untouched (for fetch/validate/parse failures no
// store operation has been issued at all). Per-document apply failures are
// accumulated in the Result, not returned as an error.
func (s Syncer) Do(ctx context.Context) (*Result, error) {
	log.Print("Fetching Known Exploited Vulnerabilities Catalog")
	feed, err := fetch.Bytes(ctx, s.feedURL, s.retry)
	if err != nil {
		return nil, &StageError{Stage: StageFetching, Err: err}
	}
	schema, err := s.loadSchema(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageFetching, Err: err}
	}

	if err := kev.Validate(feed, schema); err != nil {
		return nil, &StageError{Stage: StageValidating, Err: err}
	}
	log.Print("KEV feed is valid against the schema")

	entries, err := kev.Parse(feed)
	if err != nil {
		return nil, &StageError{Stage: StageParsing, Err: err}
	}

	current, err := s.store.IDs(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageReconciling, Err: err}
	}
	plan := reconcile.Compute(entries, current)
	if len(plan.Upserts) == 0 {
		log.Print("validated KEV feed contains no entries, the store will be emptied")
	}

	result := s.apply(ctx, plan)
	result.Processed = len(entries)
	if err := ctx.Err(); err != nil {
		return result, &StageError{Stage: StageApplying, Err: err}
	}
	if connErr := applyUnreachable(plan, result); connErr != nil {
		return result, &StageError{Stage: StageApplying, Err: connErr}
	}

	log.Printf("KEV sync finished: %d processed, %d upserted, %d deleted, %d failed",
		result.Processed, result.Upserted, result.Deleted, len(result.Failures))
	return result, nil
}

func (s Syncer) loadSchema(ctx context.Context) ([]byte, error) {
	if strings.HasPrefix(s.schemaURL, "http://") || strings.HasPrefix(s.schemaURL, "https://") {
		return fetch.Bytes(ctx, s.schemaURL, s.retry)
	}
	b, err := afero.ReadFile(s.appFs, s.schemaURL)
	if err != nil {
		return nil, xerrors.Errorf("failed to read schema file: %w", err)
	}
	return b, nil
}

// applyUnreachable distinguishes "the store became unreachable and the
// apply phase effectively never ran" from "some documents failed": when
// every single operation failed with a connection-level error, the run is
// stage-fatal rather than partial.
func applyUnreachable(plan reconcile.Plan, result *Result) *store.ConnError {
	total := len(plan.Upserts) + len(plan.Deletes)
	if total == 0 || len(result.Failures) != total {
		return nil
	}
	var connErr *store.ConnError
	for _, f := range result.Failures {
		if !errors.As(f.Err, &connErr) {
			return nil
		}
	}
	return connErr
}

type applyOp struct {
	upsert bool
	id     string
	doc    json.RawMessage
}

// apply issues the plan's upserts and deletes against the store. Upserts
// and deletes target disjoint identifier sets, so they are dispatched to
// the same bounded worker pool without ordering between them. Completed
// writes are never rolled back; a later successful run converges the store.
func (s Syncer) apply(ctx context.Context, plan reconcile.Plan) *Result {
	total := len(plan.Upserts) + len(plan.Deletes)
	bar := pb.StartNew(total)

	ops := make(chan applyOp)
	failures := make(chan ApplyError, total)
	var upserted, deleted int64

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for op := range ops {
				if ctx.Err() != nil {
					bar.Increment()
					continue
				}
				if op.upsert {
					if err := s.store.Upsert(ctx, op.id, op.doc); err != nil {
						failures <- ApplyError{Op: "upsert", ID: op.id, Err: err}
					} else {
						atomic.AddInt64(&upserted, 1)
					}
				} else {
					if err := s.store.Delete(ctx, op.id); err != nil {
						failures <- ApplyError{Op: "delete", ID: op.id, Err: err}
					} else {
						atomic.AddInt64(&deleted, 1)
					}
				}
				bar.Increment()
			}
		}()
	}

	for _, e := range plan.Upserts {
		ops <- applyOp{upsert: true, id: e.ID, doc: e.Data}
	}
	for _, id := range plan.Deletes {
		ops <- applyOp{id: id}
	}
	close(ops)
	wg.Wait()
	close(failures)
	bar.Finish()

	result := &Result{
		Upserted: int(atomic.LoadInt64(&upserted)),
		Deleted:  int(atomic.LoadInt64(&deleted)),
	}
	for f := range failures {
		log.Printf("apply failure: %s", f.Error())
		result.Failures = append(result.Failures, f)
	}
	return result
}
