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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Container registry kinds a VersioningHandler can watch.
const (
	RegistryDockerHub = "dockerhub"
	RegistryGitLab    = "gitlab"
)

// Condition types
const (
	ConditionTypeReady     = "Ready"
	ConditionTypeDegraded  = "Degraded"
)

// EDIT THIS FILE!  THIS IS SCAFFOLDING FOR YOU TO OWN!
// NOTE: json tags are required.  Any new fields you add must have json tags for the fields to be serialized.

// VersioningHandlerSpec defines the desired state of VersioningHandler
type VersioningHandlerSpec struct {
	// Deployment is the name of the Deployment to watch for new image versions.
	// +kubebuilder:validation:Required
	Deployment string `json:"deployment"`

	// ContainerRegistry selects which upstream registry adapter to query for
	// this Deployment's images.
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:Enum=dockerhub;gitlab
	ContainerRegistry string `json:"containerregistry"`
}

// VersioningHandlerStatus defines the observed state of VersioningHandler.
type VersioningHandlerStatus struct {
	// LastReconcileTime is the timestamp of the last completed tick.
	// +optional
	LastReconcileTime *metav1.Time `json:"lastReconcileTime,omitempty"`

	// MonitoredContainers tracks the per-(deployment, container) state as of
	// the last tick.
	// +optional
	MonitoredContainers []ContainerStatus `json:"monitoredContainers,omitempty"`

	// conditions represent the current state of the VersioningHandler resource.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// ContainerStatus tracks the update-decision outcome for one container of the
// watched Deployment.
type ContainerStatus struct {
	// Namespace the Deployment lives in.
	Namespace string `json:"namespace"`

	// Container is the container name within the Deployment's pod template.
	Container string `json:"container"`

	// CurrentTag is the tag currently in use.
	CurrentTag string `json:"currentTag"`

	// LatestOverall is the newest tag known to the registry, regardless of
	// the frontier policy.
	// +optional
	LatestOverall string `json:"latestOverall,omitempty"`

	// LatestAutoUpdatable is the newest tag the frontier policy allows
	// updating to automatically.
	// +optional
	LatestAutoUpdatable string `json:"latestAutoUpdatable,omitempty"`

	// LastAction is the decision applied on the last tick:
	// UpdateTo, Restart, NotifyOnly, or NoAction.
	// +optional
	LastAction string `json:"lastAction,omitempty"`

	// LastUpdated timestamp when this status was last refreshed.
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`

	// LatestTagObservedAt is the last-known upstream last_updated timestamp
	// for the registry's "latest" tag, recorded so the next tick can detect
	// whether a fresh "latest" has been pushed since (spec §4.4 branch 1).
	// +optional
	LatestTagObservedAt *metav1.Time `json:"latestTagObservedAt,omitempty"`

	// Error carries the last non-fatal error observed for this container, if any.
	// +optional
	Error string `json:"error,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,categories=versioning
// +kubebuilder:printcolumn:name="Deployment",type="string",JSONPath=".spec.deployment"
// +kubebuilder:printcolumn:name="Registry",type="string",JSONPath=".spec.containerregistry"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// VersioningHandler is the Schema for the versioninghandlers API
type VersioningHandler struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// spec defines the desired state of VersioningHandler
	// +required
	Spec VersioningHandlerSpec `json:"spec"`

	// status defines the observed state of VersioningHandler
	// +optional
	Status VersioningHandlerStatus `json:"status,omitempty,omitzero"`
}

// +kubebuilder:object:root=true

// VersioningHandlerList contains a list of VersioningHandler
type VersioningHandlerList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []VersioningHandler `json:"items"`
}

func init() {
	SchemeBuilder.Register(&VersioningHandler{}, &VersioningHandlerList{})
}
