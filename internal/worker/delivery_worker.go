package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"matchwell/internal/database"
	"matchwell/internal/domain"
	"matchwell/internal/logging"
	"matchwell/internal/metrics"
	"matchwell/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DeliveryWorker drains the delivery_tasks outbox and hands messages to the
// channel senders. Tasks are scheduled through Redis when available, with an
// in-memory channel fallback; the DB poll loop is the safety net that picks up
// anything both queues lost.
type DeliveryWorker struct {
	db            *database.DB
	sender        domain.Sender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.DeliveryTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewDeliveryWorker builds a worker with sane defaults.
func NewDeliveryWorker(db *database.DB, sender domain.Sender, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *DeliveryWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &DeliveryWorker{
		db:            db,
		sender:        sender,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.DeliveryTask, 128),
		redisQueueKey: "delivery:queue",
		deadLetterKey: "delivery:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueMessage persists an outbox row and schedules it via redis or the
// in-memory queue.
func (w *DeliveryWorker) EnqueueMessage(ctx context.Context, channel, recipient, subject, body string, payload interface{}) error {
	if channel == "" {
		return errors.New("channel is required")
	}
	if recipient == "" {
		return errors.New("recipient is required")
	}

	var payloadStr string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payloadStr = string(raw)
	}

	task := models.DeliveryTask{
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Payload:   payloadStr,
		Status:    models.DeliveryPending,
		CreatedAt: time.Now(),
	}

	if err := w.db.CreateDeliveryTask(ctx, &task); err != nil {
		return fmt.Errorf("persist delivery task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("delivery_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("delivery_worker: in-memory queue full, task dropped to polling")
	}

	return nil
}

// Start launches main loop; stops when ctx is done.
func (w *DeliveryWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("delivery_worker: started")
	defer w.logger.Info().Msg("delivery_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingDeliveryTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("delivery_worker: fetch pending")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *DeliveryWorker) tryLocalQueue() (models.DeliveryTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.DeliveryTask{}, false
	}
}

func (w *DeliveryWorker) tryRedis(ctx context.Context) (models.DeliveryTask, bool) {
	if w.redis == nil {
		return models.DeliveryTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.DeliveryTask{}, false
		}
		w.logger.Error().Err(err).Msg("delivery_worker: redis BRPOP error")
		return models.DeliveryTask{}, false
	}
	if len(res) != 2 {
		return models.DeliveryTask{}, false
	}
	var task models.DeliveryTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("delivery_worker: decode redis task")
		return models.DeliveryTask{}, false
	}
	return task, true
}

func (w *DeliveryWorker) processTask(ctx context.Context, task *models.DeliveryTask) {
	if err := w.sender.Send(ctx, task); err != nil {
		metrics.IncDelivery(task.Channel, "error")
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncDelivery(task.Channel, "ok")
	if err := w.db.UpdateDeliveryTaskStatus(ctx, task.ID, models.DeliveryCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("delivery_worker: mark completed")
	}
}

func (w *DeliveryWorker) retryOrFail(ctx context.Context, task *models.DeliveryTask, cause error) {
	attempt := int(task.RetryCount) + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.UpdateDeliveryTaskStatus(ctx, task.ID, models.DeliveryFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("delivery_worker: mark failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	w.logger.Warn().
		Err(cause).
		Int64("task_id", task.ID).
		Str("recipient", logging.MaskContact(task.Recipient)).
		Dur("next_delay", nextDelay).
		Msg("delivery_worker: send failed, retry scheduled")
	if err := w.db.UpdateDeliveryTaskStatus(ctx, task.ID, models.DeliveryRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("delivery_worker: mark retry")
	}
}

func (w *DeliveryWorker) pushRedis(ctx context.Context, task models.DeliveryTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *DeliveryWorker) pushDeadLetter(ctx context.Context, task *models.DeliveryTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("delivery_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("delivery_worker: deadletter push")
	}
}
