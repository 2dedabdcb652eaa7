/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"crypto/tls"
	"flag"
	"os"

	"go.uber.org/zap/zapcore"
	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"

	versioningv1 "github.com/asicoderOfficial/k8supdater/api/v1"
	"github.com/asicoderOfficial/k8supdater/internal/cluster"
	"github.com/asicoderOfficial/k8supdater/internal/config"
	"github.com/asicoderOfficial/k8supdater/internal/controller"
	"github.com/asicoderOfficial/k8supdater/internal/notify"
	"github.com/asicoderOfficial/k8supdater/internal/reachability"
	"github.com/asicoderOfficial/k8supdater/internal/registry"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(versioningv1.AddToScheme(scheme))
}

func main() {
	var metricsAddr string
	var probeAddr string
	var enableLeaderElection bool
	var secureMetrics bool
	var configPath string
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8443", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. Enabling this will ensure there is only one active controller manager.")
	flag.BoolVar(&secureMetrics, "metrics-secure", true, "If set, the metrics endpoint is served securely.")
	flag.StringVar(&configPath, "config", "", "Optional path to a YAML bootstrap file supplying defaults for any "+
		"environment variable internal/config reads (env vars still take priority when both are set).")

	opts := zap.Options{Development: false, Level: zapcore.InfoLevel}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		setupLog.Error(err, "unable to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		setupLog.Error(err, "invalid configuration")
		os.Exit(1)
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress:   metricsAddr,
			SecureServing: secureMetrics,
			TLSOpts:       []func(*tls.Config){},
		},
		WebhookServer:          webhook.NewServer(webhook.Options{Port: 9443}),
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "k8supdater.versioning.k8supdater.dev",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	baseConfig, err := cluster.BootstrapConfig()
	if err != nil {
		setupLog.Error(err, "unable to resolve a Kubernetes client configuration")
		os.Exit(1)
	}
	baseClientset, err := kubernetes.NewForConfig(baseConfig)
	if err != nil {
		setupLog.Error(err, "unable to build base clientset")
		os.Exit(1)
	}

	dockerhubAdapter := registry.NewDockerHub(ctrl.Log.WithName("registry").WithName("dockerhub"))
	gitlabAdapter := registry.NewGitLab(registry.GitLabConfig{
		BaseURL:   cfg.GitLabBaseURL,
		Token:     cfg.GitLabToken,
		ProjectID: cfg.GitLabProjectID,
	}, ctrl.Log.WithName("registry").WithName("gitlab"))

	notifyLog := loggerAdapter{ctrl.Log.WithName("notify")}
	var sinks []notify.Sink
	sinks = append(sinks, notify.NewStdout(notifyLog))
	if cfg.EmailReady() {
		sinks = append(sinks, notify.NewSMTP(cfg.EmailHost, cfg.EmailPort, cfg.EmailSender, cfg.EmailRecipient, cfg.EmailPassword, cfg.EmailUseTLS))
	}
	if cfg.TelegramReady() {
		sinks = append(sinks, notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID))
	}

	reconciler := &controller.VersioningHandlerReconciler{
		Client:            mgr.GetClient(),
		Scheme:            mgr.GetScheme(),
		Recorder:          mgr.GetEventRecorderFor("versioninghandler-controller"),
		Config:            cfg,
		DockerHub:         dockerhubAdapter,
		GitLab:            gitlabAdapter,
		Notifier:          notify.NewMulti(notifyLog, sinks...),
		Prober:            reachability.NewProber(cfg.RefreshFrequency),
		NewClusterAdapter: controller.NewClusterSession(baseClientset, ctrl.Log.WithName("cluster")),
	}
	if err := reconciler.SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "VersioningHandler")
		os.Exit(1)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

// loggerAdapter adapts a logr.Logger to the small notify.Logger interface so
// notify doesn't need to import logr directly.
type loggerAdapter struct {
	log interface {
		Info(msg string, keysAndValues ...any)
		Error(err error, msg string, keysAndValues ...any)
	}
}

func (l loggerAdapter) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l loggerAdapter) Error(msg string, args ...any) { l.log.Error(nil, msg, args...) }
