package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/runnable/controlplane/internal/activity"
	"github.com/runnable/controlplane/internal/config"
	"github.com/runnable/controlplane/internal/db"
	"github.com/runnable/controlplane/internal/logging"
	"github.com/runnable/controlplane/internal/metrics"
	"github.com/runnable/controlplane/internal/runtime"
	"github.com/runnable/controlplane/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics(corePool)

	tlsConfig, err := cfg.TemporalTLS()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	w := worker.New(tc, workflow.TaskQueue, worker.Options{})

	// Register activities
	w.RegisterActivity(activity.NewInstanceDB(corePool))
	w.RegisterActivity(activity.NewContextVersionDB(corePool))
	w.RegisterActivity(activity.NewIsolationDB(corePool))
	w.RegisterActivity(activity.NewHosts(corePool, cfg.UserContentDomain))
	w.RegisterActivity(activity.NewContainer(runtime.NewDockerRuntime()))
	w.RegisterActivity(activity.NewBuildService(cfg.BuildServiceURL))

	notify, err := activity.NewNotify(cfg.RealtimeGatewayURL, cfg.DeployChatWebhookURL, cfg.GithubAPIURL, cfg.UserContentDomain)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build notify activities")
	}
	w.RegisterActivity(notify)

	// Register workflows
	w.RegisterWorkflow(workflow.InstanceContainerCreatedWorkflow)
	w.RegisterWorkflow(workflow.InstanceContainerDiedWorkflow)
	w.RegisterWorkflow(workflow.ContainerNetworkAttachedWorkflow)
	w.RegisterWorkflow(workflow.InstanceStartWorkflow)
	w.RegisterWorkflow(workflow.InstanceStopWorkflow)
	w.RegisterWorkflow(workflow.InstanceKillWorkflow)
	w.RegisterWorkflow(workflow.InstanceDeleteWorkflow)
	w.RegisterWorkflow(workflow.InstanceAutoDeployWorkflow)
	w.RegisterWorkflow(workflow.InstanceDeployedNotifyWorkflow)
	w.RegisterWorkflow(workflow.IsolationKillWorkflow)
	w.RegisterWorkflow(workflow.RedeployCheckWorkflow)
	w.RegisterWorkflow(workflow.IsolationRedeployWorkflow)
	w.RegisterWorkflow(workflow.ContextVersionDeleteWorkflow)
	w.RegisterWorkflow(workflow.ImageBuilderStartedWorkflow)
	w.RegisterWorkflow(workflow.ImageBuilderDiedWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", workflow.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}
