package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/polyglot-chat/polyglot-server/internal/ai"
	"github.com/polyglot-chat/polyglot-server/internal/chat"
	"github.com/polyglot-chat/polyglot-server/internal/config"
	"github.com/polyglot-chat/polyglot-server/internal/db"
	"github.com/polyglot-chat/polyglot-server/internal/store/rabbitmq"
	"github.com/polyglot-chat/polyglot-server/internal/tutor"
	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	sessions := chat.NewRepo(gdb)
	tutors := tutor.NewRepo(gdb)

	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return ai.NewOllamaProvider(cfg.OllamaBaseURL), nil
	})

	engine := chat.NewEngine(sessions, reg, cfg.AIProvider)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	w := &worker{sessions: sessions, tutors: tutors, engine: engine}

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := w.handleJob(ctx, m.JobID); err != nil {
					log.Printf("worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

type worker struct {
	sessions *chat.Repo
	tutors   *tutor.Repo
	engine   *chat.Engine
}

// handleJob runs one queued exchange end to end: load the job, its session
// and tutor, generate the reply, append, and record the outcome on the job
// row.
func (w *worker) handleJob(ctx context.Context, jobID string) error {
	_ = w.sessions.UpdateJobStatusRunning(ctx, jobID)

	j, err := w.sessions.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	session, err := w.sessions.GetByIDAndUserID(ctx, j.SessionID, j.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// session deleted since the job was queued; fail the job, drop the message
			_ = w.sessions.MarkJobFailed(ctx, jobID, "chat session not found")
			return nil
		}
		return err
	}

	t, err := w.tutors.Get(ctx, session.TutorID)
	if err != nil {
		_ = w.sessions.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	reply, err := w.engine.GetResponse(ctx, session, &session.User, t, j.Prompt, true)
	if err != nil {
		_ = w.sessions.MarkJobFailed(ctx, jobID, err.Error())
		if errors.Is(err, chat.ErrHistoryTooLong) {
			// client error; retrying cannot help, drop without requeue
			return nil
		}
		return err
	}

	return w.sessions.MarkJobSucceeded(ctx, jobID, reply.ID)
}
