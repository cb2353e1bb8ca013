// Command feeder publishes synthetic transaction events to the feed topic,
// for exercising the consumer locally. It is driven over HTTP:
// POST /start {"rate":10,"duration":"30s"}, POST /stop, GET /stats.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/kafka"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Feeder struct {
	writer writer
	source *eventSource
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	sent    atomic.Int64
	failed  atomic.Int64
}

func NewFeeder(w writer, source *eventSource, logger *zap.Logger) *Feeder {
	return &Feeder{writer: w, source: source, logger: logger}
}

// Start publishes rate events per second for duration. It is a no-op while
// a run is in progress.
func (f *Feeder) Start(rate int, duration time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running.Load() {
		return false
	}
	f.running.Store(true)
	f.sent.Store(0)
	f.failed.Store(0)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	f.cancel = cancel

	f.logger.Info("feeding transaction events", zap.Int("rate", rate), zap.Duration("duration", duration))
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.running.Store(false)
		defer cancel()

		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				f.logger.Info("feed run finished", zap.Int64("sent", f.sent.Load()), zap.Int64("failed", f.failed.Load()))
				return
			case <-ticker.C:
				f.publish(ctx)
			}
		}
	}()
	return true
}

func (f *Feeder) publish(ctx context.Context) {
	msg, err := f.source.next()
	if err != nil {
		f.logger.Error("encode event", zap.Error(err))
		f.failed.Add(1)
		return
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("write event", zap.Error(err))
		}
		f.failed.Add(1)
		return
	}
	f.sent.Add(1)
}

func (f *Feeder) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

func (f *Feeder) Close() error {
	f.Stop()
	return f.writer.Close()
}

type startRequest struct {
	Rate     int    `json:"rate"`
	Duration string `json:"duration"`
}

func (f *Feeder) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Rate <= 0 {
			req.Rate = 10
		}
		duration, err := time.ParseDuration(req.Duration)
		if err != nil || duration <= 0 {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}
		if !f.Start(req.Rate, duration) {
			http.Error(w, "already running", http.StatusConflict)
			return
		}
		writeJSON(w, map[string]any{"status": "started", "rate": req.Rate, "duration": duration.String()})
	})

	r.Post("/stop", func(w http.ResponseWriter, _ *http.Request) {
		f.Stop()
		writeJSON(w, map[string]any{"status": "stopped", "sent": f.sent.Load()})
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"running": f.running.Load(),
			"sent":    f.sent.Load(),
			"failed":  f.failed.Load(),
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func envDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := strings.Split(envDefault("KAFKA_BROKERS", "kafka:9092"), ",")
	topic := envDefault("KAFKA_TOPIC", "transactions")
	addr := envDefault("FEEDER_ADDR", ":8082")

	feeder := NewFeeder(kafka.NewWriter(brokers, topic), newEventSource(time.Now().UnixNano()), logger)
	defer func() { _ = feeder.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: feeder.routes(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("feeder listening", zap.String("addr", addr), zap.Strings("brokers", brokers), zap.String("topic", topic))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen", zap.Error(err))
	}
}
