// Command processor runs the worker runtime: consume from the loaded
// workflows' input topics, match a workflow, execute it, produce the result, and commit
// the offset. It is grounded on the original processor's cli/consumer.go
// (ConsumerStart: cobra.Command wrapping a signal.Notify-driven run loop,
// eve.Logger for startup/shutdown lines), rebuilt against this system's own
// config/broker/worker/store packages.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codetiger/processor/broker"
	"github.com/codetiger/processor/config"
	"github.com/codetiger/processor/logging"
	"github.com/codetiger/processor/message"
	"github.com/codetiger/processor/opstate"
	"github.com/codetiger/processor/store"
	"github.com/codetiger/processor/worker"
)

func main() {
	cmd := &cobra.Command{
		Use:   "processor",
		Short: "Run the transformation-pipeline worker runtime",
		RunE:  run,
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProcessor()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	entry := logging.WithService(log, "processor")
	entry.Info("starting processor")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	workflowStore, err := store.NewMongoWorkflowStore(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase)
	if err != nil {
		entry.WithError(err).Error("failed to connect to workflow store")
		return err
	}

	workflows, err := workflowStore.Load(ctx, cfg.WorkflowIDs)
	if err != nil {
		entry.WithError(err).Error("failed to load workflows")
		return err
	}
	entry.WithField("count", len(workflows)).Info("loaded workflows")

	inputTopics := inputTopicsFor(workflows, cfg.KafkaTopic)
	entry.WithField("topics", inputTopics).Info("subscribing to input topics")

	dialer := broker.RealDialer{}
	consumer, err := broker.NewAMQPConsumer(dialer, cfg.KafkaBootstrapServers, inputTopics, cfg.KafkaGroupID)
	if err != nil {
		entry.WithError(err).Error("failed to start consumer")
		return err
	}
	defer consumer.Close()

	producer, err := broker.NewAMQPProducer(dialer, cfg.KafkaBootstrapServers)
	if err != nil {
		entry.WithError(err).Error("failed to start producer")
		return err
	}
	defer producer.Close()

	tracker := opstate.NewTracker(1000)

	runner := worker.NewRunner(consumer, producer, worker.Config{
		OutputTopic: cfg.KafkaTopic,
		Concurrency: cfg.MaxConcurrency,
		Workflows:   workflows,
		ServiceName: "processor",
	}, tracker, log)

	serveMetrics(ctx, entry, cfg.MetricsPort)

	if err := runner.Run(ctx); err != nil {
		entry.WithError(err).Error("worker runtime exited with error")
		return err
	}

	entry.Info("processor shut down cleanly")
	return nil
}

// inputTopicsFor collects the distinct input_topic values across every
// loaded workflow, per spec.md §4.7's "consumer subscribed to the union of
// input_topic across loaded workflows". With no workflows loaded yet (e.g.
// a fresh deployment still waiting on its workflow documents), it falls
// back to fallback so the consumer still has something to subscribe to.
func inputTopicsFor(workflows []message.Workflow, fallback string) []string {
	seen := make(map[string]bool, len(workflows))
	var topics []string
	for _, wf := range workflows {
		if wf.InputTopic == "" || seen[wf.InputTopic] {
			continue
		}
		seen[wf.InputTopic] = true
		topics = append(topics, wf.InputTopic)
	}
	if len(topics) == 0 {
		return []string{fallback}
	}
	return topics
}

// serveMetrics starts a background HTTP server exposing /metrics, shutting
// down when ctx is cancelled. It does not block the caller.
func serveMetrics(ctx context.Context, entry *logrus.Entry, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Error("metrics server exited with error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
