// Command ingress runs the HTTP-facing entry point into the pipeline: it
// accepts inbound payloads over HTTP and produces them to the configured
// input topic for the processor binary to consume. Grounded on the same
// cli/consumer.go cobra+signal idiom as cmd/processor, paired with the
// original processor's http/runner.go Start/Shutdown lifecycle, now
// implemented by httpapi.Server.
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
	"github.com/codetiger/processor/httpapi"
	"github.com/codetiger/processor/logging"
	"github.com/codetiger/processor/opstate"
)

func main() {
	cmd := &cobra.Command{
		Use:   "ingress",
		Short: "Run the HTTP ingestion front door for the transformation pipeline",
		RunE:  run,
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadIngress()
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	entry := logging.WithService(log, "ingress")
	entry.Info("starting ingress")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dialer := broker.RealDialer{}
	producer, err := broker.NewAMQPProducer(dialer, cfg.KafkaBootstrapServers)
	if err != nil {
		entry.WithError(err).Error("failed to start producer")
		return err
	}
	defer producer.Close()

	tracker := opstate.NewTracker(1000)
	server := httpapi.NewServer(producer, cfg.KafkaTopic, tracker, log)

	serveMetrics(ctx, entry, cfg.MetricsPort)

	addr := fmt.Sprintf("%s:%d", cfg.ServerHostname, cfg.ServerPort)
	entry.WithField("addr", addr).Info("listening")
	if err := server.Start(ctx, addr); err != nil {
		entry.WithError(err).Error("ingress server exited with error")
		return err
	}

	entry.Info("ingress shut down cleanly")
	return nil
}

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
