// Command huskyd bootstraps one process's coordination core from a
// session topology file and serves it until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/husky-team/husky/pkg/husky/config"
	"github.com/husky-team/husky/pkg/husky/definition"
	"github.com/husky-team/husky/pkg/husky/metrics"
	"github.com/husky-team/husky/pkg/husky/session"
	"github.com/husky-team/husky/pkg/husky/types"
)

func main() {
	app := &cli.App{
		Name:  "huskyd",
		Usage: "run one process's Husky coordination core",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "topology",
				Usage:    "path to this session's topology YAML file",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "process-id",
				Usage: "which process id this is, when --topology is shared across every process in the session",
				Value: -1,
			},
			&cli.StringFlag{
				Name:  "metrics-address",
				Usage: "address to serve Prometheus metrics on",
				Value: "127.0.0.1:9600",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug-level logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log := definition.NewDefaultLogger()
	log.ToggleDebug(c.Bool("debug"))

	topology, err := config.Load(c.String("topology"))
	if err != nil {
		return err
	}
	if pid := c.Int("process-id"); pid >= 0 {
		if err := topology.SelectSelf(types.ProcessId(pid)); err != nil {
			return err
		}
	}

	runID := uuid.New()
	log.Infof("starting session %s as process %s, bound to %s", runID, topology.Self, topology.BindAddress)

	registry := prometheus.NewRegistry()
	collectors := metrics.NewCollectors()
	collectors.MustRegister(registry)

	sess, err := session.Start(topology, log, session.Options{Metrics: collectors})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: c.String("metrics-address"), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = sess.Run(ctx)
	_ = server.Close()
	return err
}
