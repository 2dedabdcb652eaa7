package cluster

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes/fake"
)

func newTestAdapter(objs ...interface{}) (*Adapter, *fake.Clientset) {
	cs := fake.NewSimpleClientset()
	for _, o := range objs {
		switch v := o.(type) {
		case *corev1.Namespace:
			cs.CoreV1().Namespaces().Create(context.Background(), v, metav1.CreateOptions{})
		case *appsv1.Deployment:
			cs.AppsV1().Deployments(v.Namespace).Create(context.Background(), v, metav1.CreateOptions{})
		case *corev1.Pod:
			cs.CoreV1().Pods(v.Namespace).Create(context.Background(), v, metav1.CreateOptions{})
		case *corev1.ServiceAccount:
			cs.CoreV1().ServiceAccounts(v.Namespace).Create(context.Background(), v, metav1.CreateOptions{})
		case *corev1.Secret:
			cs.CoreV1().Secrets(v.Namespace).Create(context.Background(), v, metav1.CreateOptions{})
		}
	}
	return &Adapter{clientset: cs, log: logr.Discard()}, cs
}

func TestListNonSystemNamespaces(t *testing.T) {
	a, _ := newTestAdapter(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-system"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-node-lease"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "kube-public"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "app-team"}},
	)
	got, err := a.ListNonSystemNamespaces(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]bool{"default": true, "app-team": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want 2 entries matching %v", got, want)
	}
	for _, ns := range got {
		if !want[ns] {
			t.Errorf("unexpected namespace in result: %q", ns)
		}
	}
}

func TestListDeployments(t *testing.T) {
	a, _ := newTestAdapter(
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"}},
	)
	deps, err := a.ListDeployments(context.Background(), "default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 1 || deps[0].Name != "web" {
		t.Errorf("got %+v", deps)
	}
}

func TestPatchImageTag(t *testing.T) {
	a, cs := newTestAdapter(
		&appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
			Spec: appsv1.DeploymentSpec{
				Template: corev1.PodTemplateSpec{
					Spec: corev1.PodSpec{
						Containers: []corev1.Container{{Name: "app", Image: "nginx:1.20"}},
					},
				},
			},
		},
	)
	if err := a.PatchImageTag(context.Background(), "web", "default", "app", "nginx:1.21"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := cs.AppsV1().Deployments("default").Get(context.Background(), "web", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Spec.Template.Spec.Containers[0].Image != "nginx:1.21" {
		t.Errorf("image = %q, want nginx:1.21", got.Spec.Template.Spec.Containers[0].Image)
	}
}

func TestRestartRollout(t *testing.T) {
	a, cs := newTestAdapter(
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"}},
	)
	if err := a.RestartRollout(context.Background(), "web", "default"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := cs.AppsV1().Deployments("default").Get(context.Background(), "web", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.Spec.Template.ObjectMeta.Annotations[restartedAtAnnotation]; !ok {
		t.Errorf("expected restartedAt annotation to be set, got %+v", got.Spec.Template.ObjectMeta.Annotations)
	}
}

func TestBearerTokenForServiceAccount(t *testing.T) {
	a, cs := newTestAdapter(
		&corev1.ServiceAccount{
			ObjectMeta: metav1.ObjectMeta{Name: "default", Namespace: "kube-system"},
			Secrets:    []corev1.ObjectReference{{Name: "default-token-abcde"}},
		},
		&corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: "default-token-abcde", Namespace: "kube-system"},
			Data:       map[string][]byte{"token": []byte("s3cr3t")},
		},
	)
	tok, err := BearerTokenForServiceAccount(context.Background(), a.clientset, "default", "kube-system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "s3cr3t" {
		t.Errorf("token = %q, want s3cr3t", tok)
	}
}

func TestDiscoverAPIServerURL(t *testing.T) {
	a, _ := newTestAdapter(
		&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "kube-apiserver-node1", Namespace: "kube-system"},
			Spec: corev1.PodSpec{
				Containers: []corev1.Container{
					{
						Name:  "kube-apiserver",
						Image: "registry.k8s.io/kube-apiserver:v1.30.0",
						LivenessProbe: &corev1.Probe{
							ProbeHandler: corev1.ProbeHandler{
								HTTPGet: &corev1.HTTPGetAction{
									Host: "10.0.0.1",
									Port: intstr.FromInt(6443),
								},
							},
						},
					},
				},
			},
		},
	)
	url, err := DiscoverAPIServerURL(context.Background(), a.clientset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://10.0.0.1:6443" {
		t.Errorf("url = %q, want https://10.0.0.1:6443", url)
	}
}
