package domain

import (
	"fmt"
	"strings"
	"time"
)

// EnforcementMode selects whether policies are applied to the target cluster
// or only simulated. The mode is fixed when a controller instance is built
// and never changes mid-run; active mode may be downgraded to simulated at
// startup when the target adapter cannot be initialised.
type EnforcementMode string

const (
	// ModeSimulated computes enforcement decisions without touching the target.
	ModeSimulated EnforcementMode = "simulated"
	// ModeActive issues real create/replace/patch calls against the target.
	ModeActive EnforcementMode = "active"
)

// RouteClass identifies which adapter capability a policy kind maps to.
type RouteClass int

const (
	// RouteUnresolved is the zero value; the enforcer resolves it on demand
	// for documents that did not pass through the store.
	RouteUnresolved RouteClass = iota
	// RouteNetworkPolicy uses read + full-replace semantics.
	RouteNetworkPolicy
	// RouteGeneric uses patch-or-create semantics against a pluralised
	// custom-resource endpoint.
	RouteGeneric
)

// KindRoute is the closed routing variant resolved once at load time, so the
// enforcement path never dispatches on raw kind strings.
type KindRoute struct {
	Class RouteClass
	// Plural is the resource collection name for RouteGeneric kinds.
	Plural string
}

// ResolveKindRoute maps a policy kind to its adapter route. NetworkPolicy is
// the only kind with replace semantics; every other kind is treated as a
// generic custom resource with plural = lowercase(kind) + "s".
func ResolveKindRoute(kind string) KindRoute {
	if kind == "NetworkPolicy" {
		return KindRoute{Class: RouteNetworkPolicy}
	}
	return KindRoute{Class: RouteGeneric, Plural: pluralise(kind)}
}

// PolicyIdentity uniquely identifies a policy document within the target
// system.
type PolicyIdentity struct {
	Kind      string `json:"kind" yaml:"kind"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
}

// String renders the identity as kind/namespace/name for logs and summaries.
func (id PolicyIdentity) String() string {
	return fmt.Sprintf("%s/%s/%s", id.Kind, id.Namespace, id.Name)
}

// PolicyDocument is a declarative policy loaded from the configuration
// source. Documents are immutable once loaded for a given enforcement pass.
type PolicyDocument struct {
	Kind      string         `json:"kind" yaml:"kind"`
	Name      string         `json:"name" yaml:"name"`
	Namespace string         `json:"namespace" yaml:"namespace"`
	Spec      map[string]any `json:"spec" yaml:"spec"`

	// Route is resolved by the store at load time.
	Route KindRoute `json:"-" yaml:"-"`
	// LintError carries an admission-lint rejection recorded at load time.
	// A document with a lint error still flows through the coordinator so it
	// is failed individually instead of blocking siblings.
	LintError string `json:"-" yaml:"-"`
}

// Identity returns the (kind, namespace, name) triple of the document.
func (p PolicyDocument) Identity() PolicyIdentity {
	return PolicyIdentity{Kind: p.Kind, Namespace: p.Namespace, Name: p.Name}
}

// Validate checks the minimal fields the enforcement path depends on.
func (p PolicyDocument) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("missing name")
	}
	if p.Kind == "" {
		return fmt.Errorf("missing kind")
	}
	return nil
}

// Resource is the opaque payload exchanged with the target adapter.
type Resource map[string]any

// Manifest renders the document as the resource body sent to the target.
func (p PolicyDocument) Manifest() Resource {
	return Resource{
		"kind": p.Kind,
		"metadata": map[string]any{
			"name":      p.Name,
			"namespace": p.Namespace,
		},
		"spec": p.Spec,
	}
}

// EnforcementStatus classifies the outcome of enforcing one policy.
type EnforcementStatus string

const (
	StatusSuccess   EnforcementStatus = "success"
	StatusSimulated EnforcementStatus = "simulated"
	StatusFailed    EnforcementStatus = "failed"
)

// EnforcementOutcome records the result of enforcing a single policy. It is
// never mutated after creation. A failed outcome always carries a non-empty
// ErrorDetail.
type EnforcementOutcome struct {
	Identity    PolicyIdentity    `json:"identity"`
	Status      EnforcementStatus `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Duration    time.Duration     `json:"duration"`
	ErrorDetail string            `json:"error_detail,omitempty"`
}

// EnforcementFailure pairs a policy identity with the error that failed it.
type EnforcementFailure struct {
	Identity PolicyIdentity `json:"identity"`
	Detail   string         `json:"detail"`
}

// EnforcementSummary aggregates one coordination pass. Failures preserve the
// input ordering of the policies that produced them.
type EnforcementSummary struct {
	PassID      string               `json:"pass_id"`
	Total       int                  `json:"total"`
	Successful  int                  `json:"successful"`
	Failed      int                  `json:"failed"`
	Failures    []EnforcementFailure `json:"failures,omitempty"`
	CompletedAt time.Time            `json:"completed_at"`
}

// Severity grades a violation.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Violation is an observed deviation from policy emitted by the target
// system's event stream. Each violation is consumed exactly once.
type Violation struct {
	Type        string           `json:"type" yaml:"type"`
	Severity    Severity         `json:"severity" yaml:"severity"`
	Namespace   string           `json:"namespace" yaml:"namespace"`
	Name        string           `json:"name" yaml:"name"`
	Remediation *RemediationSpec `json:"remediation,omitempty" yaml:"remediation,omitempty"`
}

// RemediationAction tags the variant carried by a RemediationSpec.
type RemediationAction string

const (
	RemediationUpdatePolicy     RemediationAction = "update_policy"
	RemediationScaleResources   RemediationAction = "scale_resources"
	RemediationApplyConstraints RemediationAction = "apply_constraints"
)

// RemediationSpec describes the corrective action attached to a violation.
// Exactly one of the payload fields is populated, selected by Action.
type RemediationSpec struct {
	Action      RemediationAction `json:"action" yaml:"action"`
	Policy      *PolicyDocument   `json:"policy,omitempty" yaml:"policy,omitempty"`
	Targets     []ScaleTarget     `json:"targets,omitempty" yaml:"targets,omitempty"`
	Constraints []PolicyDocument  `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// ScaleKind restricts scaling to the workload kinds the target supports.
type ScaleKind string

const (
	ScaleDeployment  ScaleKind = "Deployment"
	ScaleStatefulSet ScaleKind = "StatefulSet"
)

// ScaleTarget names a workload and the replica count to set on it.
type ScaleTarget struct {
	Kind      ScaleKind `json:"kind" yaml:"kind"`
	Name      string    `json:"name" yaml:"name"`
	Namespace string    `json:"namespace" yaml:"namespace"`
	Replicas  int32     `json:"replicas" yaml:"replicas"`
}

// RemediationStatus classifies the outcome of a remediation attempt.
type RemediationStatus string

const (
	RemediationSucceeded RemediationStatus = "remediated"
	RemediationFailed    RemediationStatus = "failed"
)

// RemediationOutcome records one remediation attempt.
type RemediationOutcome struct {
	DispatchID string            `json:"dispatch_id"`
	Status     RemediationStatus `json:"status"`
	Detail     string            `json:"detail,omitempty"`
}

// ViolationState tracks a violation through the watcher's handling protocol.
type ViolationState string

const (
	ViolationDetected              ViolationState = "detected"
	ViolationClassified            ViolationState = "classified"
	ViolationIgnored               ViolationState = "ignored"
	ViolationRemediationDispatched ViolationState = "remediation_dispatched"
	ViolationRemediated            ViolationState = "remediated"
	ViolationRemediationFailed     ViolationState = "remediation_failed"
)

func pluralise(kind string) string {
	return strings.ToLower(kind) + "s"
}
