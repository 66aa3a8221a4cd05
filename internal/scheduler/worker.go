package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/config"
	"invoicing_backend/platform/logger"
)

// InboundProcessor is the intake pipeline. A returned rejection error
// means the message must stay unread.
type InboundProcessor interface {
	ProcessEmail(ctx context.Context, sender, body string) error
}

// MessageFlagger marks processed mailbox messages as read.
type MessageFlagger interface {
	MarkSeen(uid int) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	intake  InboundProcessor
	flagger MessageFlagger
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, intake InboundProcessor, flagger MessageFlagger, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		intake:  intake,
		flagger: flagger,
		log:     log,
	}

	mux.HandleFunc(TaskInboundEmail, w.handleInboundEmail)

	return w, nil
}

// handleInboundEmail runs one mailbox message through intake. The message
// is only marked read on success; rejected messages stay unread for
// manual review, and transient failures are retried by the queue.
func (w *Worker) handleInboundEmail(ctx context.Context, task *asynq.Task) error {
	msg, err := ParseInboundEmailPayload(task)
	if err != nil {
		return err
	}

	if err := w.intake.ProcessEmail(ctx, msg.Sender, msg.Body); err != nil {
		if isRejection(err) {
			w.log.Warn("inbound email left unread", "uid", msg.UID, "error", err)
			return nil
		}
		return err
	}

	if w.flagger != nil {
		if err := w.flagger.MarkSeen(msg.UID); err != nil {
			w.log.Error("mark seen failed", "uid", msg.UID, "error", err)
		}
	}
	return nil
}

// isRejection reports whether the failure is a verdict on the message
// itself rather than a transient processing problem.
func isRejection(err error) bool {
	switch apperr.GetKind(err) {
	case apperr.KindMalformed, apperr.KindNoMatch, apperr.KindBadRequest:
		return true
	}
	return false
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
