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

// Package controller drives the Reconciler/Timer of spec §4.5: for every
// VersioningHandler, enumerate the matching Deployment's containers, ask
// the Registry Adapters for candidate tags, apply the Version Algebra and
// Update Decision Engine, and realize the outcome through the Cluster
// Adapter, notifying (through the dedupe gate) on every update, restart,
// notify-only or error outcome; NoAction sends nothing.
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	versioningv1 "github.com/asicoderOfficial/k8supdater/api/v1"
	"github.com/asicoderOfficial/k8supdater/internal/cluster"
	"github.com/asicoderOfficial/k8supdater/internal/config"
	"github.com/asicoderOfficial/k8supdater/internal/decision"
	"github.com/asicoderOfficial/k8supdater/internal/imageref"
	"github.com/asicoderOfficial/k8supdater/internal/metrics"
	"github.com/asicoderOfficial/k8supdater/internal/notify"
	"github.com/asicoderOfficial/k8supdater/internal/reachability"
	"github.com/asicoderOfficial/k8supdater/internal/registry"
	"github.com/asicoderOfficial/k8supdater/internal/versionalg"
)

// serviceAccountNamespace/Name are where the Cluster Adapter's bearer token
// is sourced from, per spec §4.3.
const (
	serviceAccountNamespace = "kube-system"
	serviceAccountName      = "default"
)

// ClusterSessionFactory builds a short-lived, bearer-token-authenticated
// cluster.Adapter for one reconcile tick (spec §3 Ownership: "lifetime = one
// reconciliation tick"). The default, NewClusterSession, is overridden in
// tests with a fake clientset.
type ClusterSessionFactory func(ctx context.Context) (*cluster.Adapter, error)

// VersioningHandlerReconciler reconciles a VersioningHandler object.
type VersioningHandlerReconciler struct {
	client.Client
	Scheme   *runtime.Scheme
	Recorder record.EventRecorder

	Config *config.Config

	DockerHub registry.Adapter
	GitLab    registry.Adapter

	Notifier *notify.Multi
	Prober   *reachability.Prober

	// NewClusterAdapter builds the tick-scoped Cluster Adapter (spec §4.3:
	// discover the API-server URL, mint a bearer token, pin a clientset).
	NewClusterAdapter ClusterSessionFactory
}

// +kubebuilder:rbac:groups=versioning.k8supdater.dev,resources=versioninghandlers,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=versioning.k8supdater.dev,resources=versioninghandlers/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=versioning.k8supdater.dev,resources=versioninghandlers/finalizers,verbs=update
// +kubebuilder:rbac:groups=apps,resources=deployments,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=serviceaccounts,verbs=get
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch

// Reconcile drives one tick for a single VersioningHandler, implementing
// spec §4.5's ordered sequence: list-tags -> compute-decision -> apply-action
// -> notify, independently per (Deployment, container).
func (r *VersioningHandlerReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	log := logf.FromContext(ctx)
	requeue := ctrl.Result{RequeueAfter: r.Config.RefreshFrequency}

	handler := &versioningv1.VersioningHandler{}
	if err := r.Get(ctx, req.NamespacedName, handler); err != nil {
		if errors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	timer := prometheus.NewTimer(metrics.ReconcileDuration)
	defer timer.ObserveDuration()

	if handler.Spec.ContainerRegistry != versioningv1.RegistryDockerHub && handler.Spec.ContainerRegistry != versioningv1.RegistryGitLab {
		log.Info("invalid containerregistry, aborting tick for this handler", "containerregistry", handler.Spec.ContainerRegistry)
		r.setCondition(handler, versioningv1.ConditionTypeDegraded, metav1.ConditionTrue, "InvalidHandlerSpec",
			fmt.Sprintf("unrecognized containerregistry %q", handler.Spec.ContainerRegistry))
		_ = r.Status().Update(ctx, handler)
		metrics.ReconcileTotal.WithLabelValues("invalid_spec").Inc()
		return requeue, nil
	}

	available := r.Prober.Available(ctx)
	if available {
		metrics.ReachabilityChecks.WithLabelValues("reachable").Inc()
	} else {
		metrics.ReachabilityChecks.WithLabelValues("unreachable").Inc()
	}
	if !available {
		log.Info("internet unreachable, skipping tick")
		metrics.ReconcileTotal.WithLabelValues("unreachable").Inc()
		return requeue, nil
	}

	dedupe, err := notify.NewRegistry(r.Config.NotifyRegistryDir, req.Name)
	if err != nil {
		log.Error(err, "failed to open notification dedupe registry")
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return requeue, err
	}

	clusterAdapter, err := r.NewClusterAdapter(ctx)
	if err != nil {
		log.Error(err, "failed to bootstrap cluster session")
		r.setCondition(handler, versioningv1.ConditionTypeDegraded, metav1.ConditionTrue, "ClusterAuthFailure", err.Error())
		_ = r.Status().Update(ctx, handler)
		metrics.ReconcileTotal.WithLabelValues("cluster_auth_failure").Inc()
		return requeue, nil
	}

	namespaces, err := clusterAdapter.ListNonSystemNamespaces(ctx)
	if err != nil {
		log.Error(err, "failed to list namespaces")
		metrics.ReconcileTotal.WithLabelValues("error").Inc()
		return requeue, nil
	}

	adapter := r.DockerHub
	if handler.Spec.ContainerRegistry == versioningv1.RegistryGitLab {
		adapter = r.GitLab
	}

	statusByKey := make(map[string]versioningv1.ContainerStatus, len(handler.Status.MonitoredContainers))
	for _, cs := range handler.Status.MonitoredContainers {
		statusByKey[cs.Namespace+"/"+cs.Container] = cs
	}

	var newStatuses []versioningv1.ContainerStatus
	for _, ns := range namespaces {
		deployments, err := clusterAdapter.ListDeployments(ctx, ns)
		if err != nil {
			log.Error(err, "failed to list deployments", "namespace", ns)
			continue
		}
		for _, dep := range deployments {
			if dep.Name != handler.Spec.Deployment {
				continue
			}
			for _, container := range dep.Spec.Template.Spec.Containers {
				prev, hadPrev := statusByKey[ns+"/"+container.Name]
				cs := r.reconcileContainer(ctx, log, handler, clusterAdapter, adapter, dedupe, ns, dep.Name, container, prev, hadPrev)
				newStatuses = append(newStatuses, cs)
			}
		}
	}

	now := metav1.Now()
	handler.Status.LastReconcileTime = &now
	handler.Status.MonitoredContainers = newStatuses
	r.setCondition(handler, versioningv1.ConditionTypeReady, metav1.ConditionTrue, "ReconcileComplete", "tick completed")
	if err := r.Status().Update(ctx, handler); err != nil {
		log.Error(err, "failed to update VersioningHandler status")
		metrics.ReconcileTotal.WithLabelValues("status_update_failed").Inc()
		return requeue, nil
	}

	metrics.ReconcileTotal.WithLabelValues("ok").Inc()
	return requeue, nil
}

// reconcileContainer implements the per-(Deployment, container)
// Observed -> Decided -> Acted -> Notified state machine of spec §4.5.
// Every error here is non-fatal: it is recorded on the returned
// ContainerStatus and the loop in Reconcile proceeds to the next container.
func (r *VersioningHandlerReconciler) reconcileContainer(
	ctx context.Context,
	log logr.Logger,
	handler *versioningv1.VersioningHandler,
	clusterAdapter *cluster.Adapter,
	adapter registry.Adapter,
	dedupe *notify.Registry,
	ns, deploymentName string,
	container corev1.Container,
	prev versioningv1.ContainerStatus,
	hadPrev bool,
) versioningv1.ContainerStatus {
	now := metav1.Now()
	cs := versioningv1.ContainerStatus{
		Namespace:   ns,
		Container:   container.Name,
		LastUpdated: &now,
	}

	ref, err := imageref.ParseImageRef(container.Image)
	if err != nil {
		cs.Error = err.Error()
		return cs
	}
	cs.CurrentTag = ref.Tag

	tags, err := adapter.ListCandidateTags(ctx, ref.Namespace, ref.Name)
	if err == registry.ErrNoCredentials {
		// Missing registry credentials mean "no images", not a container error.
		tags, err = nil, nil
	}
	if err != nil {
		cs.Error = err.Error()
		metrics.RegistryErrors.WithLabelValues(handler.Spec.ContainerRegistry, errKind(err)).Inc()
		r.notifyDistinct(ctx, dedupe, handler.Name, ns, deploymentName, container.Name, ref.Tag, notify.EventError, "", err.Error())
		return cs
	}

	tagNames := make([]string, 0, len(tags))
	for _, t := range tags {
		tagNames = append(tagNames, t.Name)
	}
	cs.LatestOverall = versionalg.Max(tagNames)

	var latestAutoUpdatableTag string
	if ref.Tag == "latest" {
		// A "latest"-tagged container has no extractable version to anchor
		// the frontier comparator on; the only auto-updatable outcome for it
		// is a refresh of "latest" itself (spec §4.1 step 1 / §4.4 branch 1).
		if cs.LatestOverall == "latest" {
			latestAutoUpdatableTag = "latest"
		}
	} else {
		updatable := registry.UpdatableVersionsRelativeToCurrent(tags, ref.Tag)
		updatableVersions := make([]string, 0, len(updatable))
		for v := range updatable {
			updatableVersions = append(updatableVersions, v)
		}
		_, currVersion, _, ok := versionalg.ExtractVersion(ref.Tag)
		if ok {
			if best := versionalg.LatestAutoUpdatable(updatableVersions, r.Config.VersionsFrontier, currVersion); best != "" {
				latestAutoUpdatableTag = updatable[best]
			}
		}
	}
	cs.LatestAutoUpdatable = latestAutoUpdatableTag

	input := decision.Input{
		CurrentTag:          ref.Tag,
		LatestAutoUpdatable: latestAutoUpdatableTag,
		LatestOverall:       cs.LatestOverall,
		LatestPreference:    r.Config.LatestPreference,
	}
	if ref.Tag == "latest" {
		latestDate, dateErr := adapter.TagTimestamp(ctx, ref.Namespace, ref.Name, "latest")
		if dateErr == nil {
			newObserved := metav1.NewTime(latestDate)
			cs.LatestTagObservedAt = &newObserved
			if hadPrev && prev.LatestTagObservedAt != nil {
				input.HaveDates = true
				input.CurrentDate = prev.LatestTagObservedAt.Time
				input.LatestDate = latestDate
			}
		}
	}

	dec := decision.Decide(input)
	cs.LastAction = dec.Kind.String()
	metrics.DecisionsTotal.WithLabelValues(dec.Kind.String()).Inc()

	switch dec.Kind {
	case decision.UpdateTo:
		newImage := imageref.RenderImageRef(ref.WithTag(dec.Target))
		if err := clusterAdapter.PatchImageTag(ctx, deploymentName, ns, container.Name, newImage); err != nil {
			cs.Error = err.Error()
			metrics.ClusterActionsTotal.WithLabelValues("update_failed").Inc()
			r.notifyDistinct(ctx, dedupe, handler.Name, ns, deploymentName, container.Name, ref.Tag, notify.EventError, dec.Target, err.Error())
			break
		}
		metrics.ClusterActionsTotal.WithLabelValues("update").Inc()
		r.notifyDistinct(ctx, dedupe, handler.Name, ns, deploymentName, container.Name, ref.Tag, notify.EventUpdateApplied, dec.Target, "")
	case decision.Restart:
		if err := clusterAdapter.RestartRollout(ctx, deploymentName, ns); err != nil {
			cs.Error = err.Error()
			metrics.ClusterActionsTotal.WithLabelValues("restart_failed").Inc()
			r.notifyDistinct(ctx, dedupe, handler.Name, ns, deploymentName, container.Name, ref.Tag, notify.EventError, "", err.Error())
			break
		}
		metrics.ClusterActionsTotal.WithLabelValues("restart").Inc()
		r.notifyDistinct(ctx, dedupe, handler.Name, ns, deploymentName, container.Name, ref.Tag, notify.EventRestart, "latest", "")
	case decision.NotifyOnly:
		r.notifyDistinct(ctx, dedupe, handler.Name, ns, deploymentName, container.Name, ref.Tag, notify.EventNotifyOnly, cs.LatestOverall, "")
	case decision.NoAction:
	}

	return cs
}

// notifyDistinct gates a notification through the dedupe registry
// (spec §9 Open Question 3) before dispatching it to the configured sinks.
func (r *VersioningHandlerReconciler) notifyDistinct(
	ctx context.Context,
	dedupe *notify.Registry,
	handlerName, ns, deployment, container, fromTag string,
	eventType notify.EventType,
	toTag, errMsg string,
) {
	imageID := fmt.Sprintf("%s/%s/%s", ns, deployment, container)
	logID := fmt.Sprintf("%s:%s:%s", eventType, toTag, errMsg)

	distinct, err := dedupe.EmitIfDistinct(imageID, logID)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("dedupe", "error").Inc()
		return
	}
	if !distinct {
		metrics.NotificationsTotal.WithLabelValues("dedupe", "suppressed").Inc()
		return
	}

	r.Notifier.Notify(ctx, notify.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Handler:    handlerName,
		Deployment: deployment,
		Container:  container,
		Image:      fmt.Sprintf("%s/%s:%s", ns, deployment, container),
		FromTag:    fromTag,
		ToTag:      toTag,
		Error:      errMsg,
		Timestamp:  time.Now(),
	})
	metrics.NotificationsTotal.WithLabelValues("multi", "sent").Inc()
}

// setCondition upserts a status condition, tracking transition time only
// when the status actually changes (matching the teacher's updateCondition).
func (r *VersioningHandlerReconciler) setCondition(handler *versioningv1.VersioningHandler, condType string, status metav1.ConditionStatus, reason, message string) {
	now := metav1.Now()
	condition := metav1.Condition{
		Type:               condType,
		Status:             status,
		LastTransitionTime: now,
		Reason:             reason,
		Message:            message,
	}
	for i, existing := range handler.Status.Conditions {
		if existing.Type == condType {
			if existing.Status == status {
				condition.LastTransitionTime = existing.LastTransitionTime
			}
			handler.Status.Conditions[i] = condition
			return
		}
	}
	handler.Status.Conditions = append(handler.Status.Conditions, condition)
}

// errKind maps a registry sentinel error to a short metrics label.
func errKind(err error) string {
	switch {
	case err == registry.ErrImageNotFound:
		return "image_not_found"
	case err == registry.ErrDateNotFound:
		return "date_not_found"
	case err == registry.ErrNoCredentials:
		return "no_credentials"
	default:
		return "abnormal_response"
	}
}

// NewClusterSession returns a ClusterSessionFactory that bootstraps a
// tick-scoped cluster.Adapter: discover the API-server URL from the base
// clientset, mint a bearer token for the default/kube-system service
// account, and pin a second clientset to that URL with TLS verification
// disabled (spec §4.3).
func NewClusterSession(baseClientset kubernetes.Interface, log logr.Logger) ClusterSessionFactory {
	return func(ctx context.Context) (*cluster.Adapter, error) {
		token, err := cluster.BearerTokenForServiceAccount(ctx, baseClientset, serviceAccountName, serviceAccountNamespace)
		if err != nil {
			return nil, err
		}
		apiServerURL, err := cluster.DiscoverAPIServerURL(ctx, baseClientset)
		if err != nil {
			return nil, err
		}
		return cluster.NewAdapter(apiServerURL, token, log)
	}
}

// SetupWithManager sets up the controller with the Manager.
func (r *VersioningHandlerReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&versioningv1.VersioningHandler{}).
		Named("versioninghandler").
		Complete(r)
}
