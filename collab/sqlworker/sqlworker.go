// Package sqlworker is a demo external collaborator: a dedicated
// goroutine running blocking database/sql queries against a
// github.com/mattn/go-sqlite3 connection, reporting results back to the
// reactor loop through the same boundary any other worker thread would
// use — a notify callback wired to Loop.Wake, with results drained from
// a channel via Results(), never a direct call into loop internals.
//
// This is the concrete stand-in for a "SQL/Mongo worker threads"
// external-collaborator example. Logging is via
// sirupsen/logrus, following the same submodule's (go-sql) choice of
// logging library; benbjohnson/clock (a real clock.New()) times each
// query for the worker's debug log line.
package sqlworker

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Job is a single query submitted to the worker.
type Job struct {
	Query string
	Args  []any
}

// Result is delivered to Worker's result channel once a Job completes.
type Result struct {
	Rows *sql.Rows
	Err  error
}

// Worker owns a single *sql.DB and a background goroutine draining a
// job queue, completely decoupled from the reactor loop's own
// goroutine; callers drain Results() from the loop's callback for a
// registered wake fd (see the notify argument of New).
type Worker struct {
	db      *sql.DB
	log     *logrus.Entry
	clock   clock.Clock
	jobs    chan Job
	results chan Result
	notify  func()

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New opens dsn (a sqlite3 DSN, e.g. "file:test.db?cache=shared") and
// starts the worker goroutine. notify is called (from the worker
// goroutine, so it must be safe to call from any goroutine — e.g.
// Loop.Wake) every time a Result becomes available.
func New(dsn string, log *logrus.Logger, notify func()) (*Worker, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlworker: open: %w", err)
	}
	if log == nil {
		log = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		db:      db,
		log:     log.WithField("component", "sqlworker"),
		clock:   clock.New(),
		jobs:    make(chan Job, 64),
		results: make(chan Result, 64),
		notify:  notify,
		cancel:  cancel,
	}
	w.wg.Add(1)
	go w.run(ctx)
	return w, nil
}

// Submit enqueues a query for background execution. Safe to call from
// the loop's own goroutine.
func (w *Worker) Submit(j Job) {
	w.jobs <- j
}

// Results drains every Result currently buffered; intended to be called
// from the loop's callback for whatever fd/timer notify is wired to.
func (w *Worker) Results() []Result {
	var out []Result
	for {
		select {
		case r := <-w.results:
			out = append(out, r)
		default:
			return out
		}
	}
}

// Close stops the worker goroutine and closes the underlying database.
func (w *Worker) Close() error {
	w.cancel()
	w.wg.Wait()
	return w.db.Close()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.jobs:
			start := w.clock.Now()
			rows, err := w.db.QueryContext(ctx, j.Query, j.Args...)
			if err != nil {
				w.log.WithError(err).WithField("query", j.Query).Warn("query failed")
			}
			w.log.WithField("elapsed", w.clock.Since(start)).Debug("query completed")
			w.results <- Result{Rows: rows, Err: err}
			if w.notify != nil {
				w.notify()
			}
		}
	}
}
