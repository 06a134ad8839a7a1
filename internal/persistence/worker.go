package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"BetLedger/internal/observability"
)

// CoreOutput mirrors core.CoreOutput to avoid an import cycle. The
// orchestrator (cmd/betledger) bridges between the two.
type CoreOutput struct {
	EventRow       EventRow
	Bets           []BetRow
	Markets        []MarketRow
	Accounts       []AccountRow
	Participations []ParticipationRow
	Daily          []DailyRow
	Global         *GlobalRow
}

// batch accumulates pending writes. Aggregates are keyed by primary key,
// latest version wins, so one flush never updates the same row twice.
type batch struct {
	events         []EventRow
	bets           map[string]BetRow
	markets        map[string]MarketRow
	accounts       map[string]AccountRow
	participations map[string]ParticipationRow
	daily          map[string]DailyRow
	global         *GlobalRow
}

func newBatch(capacity int) *batch {
	return &batch{
		events:         make([]EventRow, 0, capacity),
		bets:           make(map[string]BetRow),
		markets:        make(map[string]MarketRow),
		accounts:       make(map[string]AccountRow),
		participations: make(map[string]ParticipationRow),
		daily:          make(map[string]DailyRow),
	}
}

func (b *batch) add(output CoreOutput) {
	b.events = append(b.events, output.EventRow)
	for _, r := range output.Bets {
		b.bets[r.BetID] = r
	}
	for _, r := range output.Markets {
		b.markets[r.MarketID] = r
	}
	for _, r := range output.Accounts {
		b.accounts[r.TraderID] = r
	}
	for _, r := range output.Participations {
		b.participations[r.TraderID+"|"+r.MarketID] = r
	}
	for _, r := range output.Daily {
		b.daily[fmt.Sprintf("%s|%d", r.TraderID, r.Day)] = r
	}
	if output.Global != nil {
		b.global = output.Global
	}
}

func (b *batch) size() int {
	return len(b.events)
}

// PersistenceWorker drains the persist channel and batch-writes to
// Postgres. This goroutine runs independently from the engine. The
// persist channel uses BLOCKING sends from the engine, so if this worker
// falls behind, the engine stalls and no event is lost.
type PersistenceWorker struct {
	writer       *LedgerWriter
	db           *sql.DB
	inputChan    <-chan CoreOutput
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewPersistenceWorker(
	db *sql.DB,
	inputChan <-chan CoreOutput,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *PersistenceWorker {
	return &PersistenceWorker{
		writer:       NewLedgerWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run starts the persistence worker loop. It batches incoming outputs
// and flushes either when the batch is full or the flush timeout expires.
// Blocks until ctx is cancelled.
func (pw *PersistenceWorker) Run(ctx context.Context) error {
	pending := newBatch(pw.batchSize)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if pending.size() > 0 {
				if err := pw.flush(context.Background(), pending); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				// Channel closed — flush and exit
				if pending.size() > 0 {
					if err := pw.flush(context.Background(), pending); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			pending.add(output)

			if pending.size() >= pw.batchSize {
				if err := pw.flushWithRetry(ctx, pending); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				pending = newBatch(pw.batchSize)
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			if pending.size() > 0 {
				if err := pw.flushWithRetry(ctx, pending); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				pending = newBatch(pw.batchSize)
			}
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. The worker
// never drops events. It retries until the write succeeds or the context
// is cancelled, then makes one final attempt with a background context.
func (pw *PersistenceWorker) flushWithRetry(ctx context.Context, pending *batch) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, events=%d)",
				attempt, backoff, pending.size())
			select {
			case <-ctx.Done():
				finalErr := pw.flush(context.Background(), pending)
				if finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := pw.flush(ctx, pending)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if pw.metrics != nil {
			pw.metrics.PersistRetry.Inc()
		}
	}
}

func (pw *PersistenceWorker) flush(ctx context.Context, pending *batch) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := pw.writer.WriteEventBatch(ctx, tx, pending.events); err != nil {
		return pw.fail("write_events", err)
	}
	if err := pw.writer.UpsertBets(ctx, tx, mapValues(pending.bets)); err != nil {
		return pw.fail("write_bets", err)
	}
	if err := pw.writer.UpsertMarkets(ctx, tx, mapValues(pending.markets)); err != nil {
		return pw.fail("write_markets", err)
	}
	if err := pw.writer.UpsertAccounts(ctx, tx, mapValues(pending.accounts)); err != nil {
		return pw.fail("write_accounts", err)
	}
	if err := pw.writer.UpsertParticipations(ctx, tx, mapValues(pending.participations)); err != nil {
		return pw.fail("write_participations", err)
	}
	if err := pw.writer.UpsertDaily(ctx, tx, mapValues(pending.daily)); err != nil {
		return pw.fail("write_daily", err)
	}
	if err := pw.writer.UpsertGlobal(ctx, tx, pending.global); err != nil {
		return pw.fail("write_global", err)
	}

	if err := tx.Commit(); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(pending.size()))
		pw.metrics.PersistEventsWritten.Add(float64(len(pending.events)))
		pw.metrics.PersistRowsWritten.WithLabelValues("bets").Add(float64(len(pending.bets)))
		pw.metrics.PersistRowsWritten.WithLabelValues("markets").Add(float64(len(pending.markets)))
		pw.metrics.PersistRowsWritten.WithLabelValues("trader_accounts").Add(float64(len(pending.accounts)))
		pw.metrics.PersistRowsWritten.WithLabelValues("market_participations").Add(float64(len(pending.participations)))
		pw.metrics.PersistRowsWritten.WithLabelValues("daily_profit").Add(float64(len(pending.daily)))
		if len(pending.events) > 0 {
			pw.metrics.PersistLastSequence.Set(float64(pending.events[len(pending.events)-1].Sequence))
		}
	}

	return nil
}

func (pw *PersistenceWorker) fail(errType string, err error) error {
	if pw.metrics != nil {
		pw.metrics.PersistErrors.WithLabelValues(errType).Inc()
	}
	return err
}

func mapValues[V any](m map[string]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// GetWriter returns the underlying writer
func (pw *PersistenceWorker) GetWriter() *LedgerWriter {
	return pw.writer
}

// MarshalPayload is a convenience wrapper for JSON-encoding event payloads.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
