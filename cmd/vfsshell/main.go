/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUTHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ConfigButler/vfscore/internal/blobstore"
	blobstoremock "github.com/ConfigButler/vfscore/internal/blobstore/mock"
	"github.com/ConfigButler/vfscore/internal/boot"
	"github.com/ConfigButler/vfscore/internal/fstab"
	"github.com/ConfigButler/vfscore/internal/gitfs"
	"github.com/ConfigButler/vfscore/internal/memfs"
	"github.com/ConfigButler/vfscore/internal/metrics"
	"github.com/ConfigButler/vfscore/internal/mount"
	"github.com/ConfigButler/vfscore/internal/shell"
	"github.com/ConfigButler/vfscore/internal/vfs"
)

func main() {
	var metricsPort int
	var userID string
	var development bool

	flag.IntVar(&metricsPort, "metrics-port", 8080, "The port for the metrics and health server.")
	flag.StringVar(&userID, "user", "user-1", "The user ID this shell session operates as.")
	flag.BoolVar(&development, "development", true, "Use zap's development logging encoder.")
	flag.Parse()

	zapCfg := zap.NewProductionConfig()
	if development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapLog, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vfsshell: unable to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLog.Sync() }()
	logger := zapr.NewLogger(zapLog)
	setupLog := logger.WithName("setup")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	}))
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	metricsServer := &http.Server{
		Addr:    ":" + strconv.Itoa(metricsPort),
		Handler: metricsMux,
	}
	go func() {
		setupLog.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			setupLog.Error(err, "problem running metrics server")
		}
	}()
	defer metricsServer.Close()

	if shutdown, err := metrics.InitOTLPExporter(ctx); err != nil {
		setupLog.Error(err, "unable to initialize OTLP exporter")
		os.Exit(1)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				setupLog.Error(err, "failed to shutdown OTLP exporter")
			}
		}()
	}

	bucket := blobstoremock.NewMemBucket()

	// No D1/R2 driver ships in the retrieval pack (see DESIGN.md), so
	// /etc and the default d1 mount use the in-memory adapter and the
	// default r2 mount uses an in-process bucket. A production
	// deployment swaps etcAdapter and the "d1"/"r2" registry entries
	// for a *sql.DB-backed rowstore.Adapter and an HTTP-backed Bucket
	// without touching anything else here.
	etcAdapter := memfs.New()

	registry := boot.TypeRegistry{
		"d1": func(fstab.Entry) (vfs.FS, error) {
			return memfs.New(), nil
		},
		"r2": func(fstab.Entry) (vfs.FS, error) {
			return blobstore.New(bucket), nil
		},
		"git": func(entry fstab.Entry) (vfs.FS, error) {
			return gitfs.New(bucket, gitfs.Config{
				URL:        entry.Device,
				Ref:        entry.Options["ref"],
				Depth:      gitDepth(entry.Options["depth"]),
				MountPoint: entry.MountPoint,
				UserID:     userID,
				Logger:     logger.WithName("gitfs"),
			}), nil
		},
	}

	router := mount.New(memfs.New())
	if err := boot.Sequence(ctx, router, etcAdapter, registry, logger.WithName("boot")); err != nil {
		setupLog.Error(err, "boot sequence failed")
		os.Exit(1)
	}
	setupLog.Info("boot sequence complete", "mounts", len(router.GetMounts()))

	env := &shell.Env{
		Router:   router,
		Bucket:   bucket,
		Registry: registry,
		UserID:   userID,
		Cwd:      "/home/user",
		Getenv:   os.Getenv,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Logger:   logger.WithName("shell"),
	}

	if flag.NArg() > 0 {
		os.Exit(shell.Dispatch(ctx, env, flag.Args()))
	}

	runREPL(ctx, env)
}

// runREPL reads one command per line from stdin until EOF or ctx is
// canceled, the way a sandboxed shell session serves a sequence of
// commands over its lifetime rather than exiting after the first one.
func runREPL(ctx context.Context, env *shell.Env) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		argv := strings.Fields(line)
		if code := shell.Dispatch(ctx, env, argv); code != 0 {
			fmt.Fprintf(env.Stderr, "vfsshell: command exited %d\n", code)
		}
	}
}

func gitDepth(raw string) int {
	if raw == "" {
		return 1
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth <= 0 {
		return 1
	}
	return depth
}
