package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisQueue is the producer half of the persist pipeline. Each save's
// answer rows go on as one JSON item; PersistWorker takes them off.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a new RedisQueue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// Enqueue pushes one save's answer rows onto the persist queue.
func (q *RedisQueue) Enqueue(ctx context.Context, rows []repository.AnswerRow) error {
	if len(rows) == 0 {
		return nil
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err()
}

// PersistWorker consumes the persist queue and UPSERTs answer rows to
// PostgreSQL, coalescing queued items into batches.
type PersistWorker struct {
	answerRepo *repository.AnswerRepository
	rdb        *redis.Client
	batchSize  int
	log        zerolog.Logger
}

// NewPersistWorker creates a new PersistWorker.
func NewPersistWorker(answerRepo *repository.AnswerRepository, rdb *redis.Client, batchSize int, log zerolog.Logger) *PersistWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &PersistWorker{
		answerRepo: answerRepo,
		rdb:        rdb,
		batchSize:  batchSize,
		log:        log.With().Str("component", "persist_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *PersistWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *PersistWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	items := []string{result[1]}

	// Coalesce whatever else is already queued, up to the batch size.
	for len(items) < w.batchSize {
		next, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}
		items = append(items, next)
	}

	rows, valid := decodeItems(w.log, items)
	if len(rows) == 0 {
		return
	}

	if err := w.answerRepo.UpsertBatch(ctx, rows); err != nil {
		w.log.Error().Err(err).Int("items", len(valid)).Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		for _, item := range valid {
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, item)
		}
		time.Sleep(5 * time.Second)
	}
}

// decodeItems unmarshals raw queue items, dropping any that will never
// parse so they cannot wedge the queue.
func decodeItems(log zerolog.Logger, items []string) ([]repository.AnswerRow, []string) {
	var rows []repository.AnswerRow
	valid := make([]string, 0, len(items))
	for _, item := range items {
		var batch []repository.AnswerRow
		if err := json.Unmarshal([]byte(item), &batch); err != nil {
			log.Error().Err(err).Msg("Unmarshal error")
			continue
		}
		rows = append(rows, batch...)
		valid = append(valid, item)
	}
	return rows, valid
}

// drain processes all remaining items in the queue before shutdown.
func (w *PersistWorker) drain(ctx context.Context) {
	drained := 0
	for {
		item, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var batch []repository.AnswerRow
		if err := json.Unmarshal([]byte(item), &batch); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.answerRepo.UpsertBatch(ctx, batch); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, item)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
