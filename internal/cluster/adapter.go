// Package cluster implements the Cluster Adapter: a short-lived,
// bearer-token-authenticated client-go session distinct from the
// controller-runtime manager's cached client, used to enumerate
// Deployments and apply patch/restart decisions against a pinned
// API-server URL (spec §4.3).
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// nativeNamespaces are excluded from listNonSystemNamespaces, per spec §4.3.
var nativeNamespaces = map[string]bool{
	"kube-system":     true,
	"kube-node-lease": true,
	"kube-public":     true,
}

// restartedAtAnnotation is patched to trigger a rollout restart, matching
// kubectl's own convention (and the upstream Python source).
const restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// Adapter owns one tick's worth of authenticated API-server session
// (spec §3 Ownership: "lifetime = one reconciliation tick").
type Adapter struct {
	clientset kubernetes.Interface
	log       logr.Logger
}

// NewAdapter builds a cluster Adapter pinned to the given bearer token and
// API-server URL, with TLS verification disabled — matching the Python
// original's `configuration.verify_ssl = False` against a URL discovered at
// runtime rather than a well-known cluster CA.
func NewAdapter(apiServerURL, bearerToken string, log logr.Logger) (*Adapter, error) {
	cfg := &rest.Config{
		Host:        apiServerURL,
		BearerToken: bearerToken,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: true,
		},
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster: building clientset: %w", err)
	}
	return &Adapter{clientset: cs, log: log}, nil
}

// NewAdapterFromClientset wraps an already-constructed clientset as an
// Adapter, bypassing the bearer-token/TLS-disabled dial of NewAdapter. Used
// by callers (and tests, including other packages') that already hold a
// kubernetes.Interface — e.g. a fake clientset.
func NewAdapterFromClientset(cs kubernetes.Interface, log logr.Logger) *Adapter {
	return &Adapter{clientset: cs, log: log}
}

// BootstrapConfig resolves a *rest.Config the same way the original falls
// back: in-cluster config first, then a local kubeconfig for development.
func BootstrapConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// BearerTokenForServiceAccount obtains a bearer token from the named
// service account's referenced secret (spec §4.3: "obtain a bearer token
// from the default service-account in kube-system"). Unlike the Python
// original, which base64-decodes the secret's `token` field by hand after a
// raw JSON read, client-go already decodes Secret.Data for us — the byte
// slice under the "token" key is the raw token, no further decoding needed.
func BearerTokenForServiceAccount(ctx context.Context, cs kubernetes.Interface, name, namespace string) (string, error) {
	sa, err := cs.CoreV1().ServiceAccounts(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("cluster: reading service account %s/%s: %w", namespace, name, err)
	}

	var secretName string
	for _, ref := range sa.Secrets {
		if strings.Contains(ref.Name, "token") {
			secretName = ref.Name
			break
		}
	}
	if secretName == "" {
		return "", fmt.Errorf("cluster: service account %s/%s has no token secret", namespace, name)
	}

	secret, err := cs.CoreV1().Secrets(namespace).Get(ctx, secretName, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("cluster: reading secret %s/%s: %w", namespace, secretName, err)
	}
	token, ok := secret.Data["token"]
	if !ok {
		return "", fmt.Errorf("cluster: secret %s/%s has no token field", namespace, secretName)
	}
	return string(token), nil
}

// DiscoverAPIServerURL scans all pods for the one whose name contains
// "kube-apiserver" and reads its container's liveness-probe HTTP host/port.
func DiscoverAPIServerURL(ctx context.Context, cs kubernetes.Interface) (string, error) {
	pods, err := cs.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("cluster: listing pods: %w", err)
	}
	for _, pod := range pods.Items {
		if !strings.Contains(pod.Name, "kube-apiserver") {
			continue
		}
		for _, c := range pod.Spec.Containers {
			if !strings.Contains(c.Image, "kube-apiserver") {
				continue
			}
			if c.LivenessProbe == nil || c.LivenessProbe.HTTPGet == nil {
				continue
			}
			host := c.LivenessProbe.HTTPGet.Host
			port := c.LivenessProbe.HTTPGet.Port.String()
			return fmt.Sprintf("https://%s:%s", host, port), nil
		}
	}
	return "", fmt.Errorf("cluster: no kube-apiserver pod found")
}

// ListNonSystemNamespaces returns every namespace except the three
// kubelet-native ones.
func (a *Adapter) ListNonSystemNamespaces(ctx context.Context) ([]string, error) {
	nsList, err := a.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("cluster: listing namespaces: %w", err)
	}
	var out []string
	for _, ns := range nsList.Items {
		if !nativeNamespaces[ns.Name] {
			out = append(out, ns.Name)
		}
	}
	return out, nil
}

// ListDeployments lists all Deployments in the given namespace.
func (a *Adapter) ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error) {
	list, err := a.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("cluster: listing deployments in %s: %w", namespace, err)
	}
	return list.Items, nil
}

// PatchImageTag strategic-merge-patches spec.template.spec.containers[*].image
// for the named container to newImage (a full "name:tag" reference).
func (a *Adapter) PatchImageTag(ctx context.Context, deployment, namespace, containerName, newImage string) error {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []map[string]any{
						{"name": containerName, "image": newImage},
					},
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("cluster: encoding patch: %w", err)
	}
	_, err = a.clientset.AppsV1().Deployments(namespace).Patch(ctx, deployment, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("cluster: patching image for %s/%s: %w", namespace, deployment, err)
	}
	return nil
}

// RestartRollout strategic-merge-patches the restartedAt annotation to the
// current UTC ISO8601 timestamp, triggering a rollout restart.
func (a *Adapter) RestartRollout(ctx context.Context, deployment, namespace string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]any{
						restartedAtAnnotation: now,
					},
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("cluster: encoding patch: %w", err)
	}
	_, err = a.clientset.AppsV1().Deployments(namespace).Patch(ctx, deployment, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("cluster: restarting %s/%s: %w", namespace, deployment, err)
	}
	return nil
}
