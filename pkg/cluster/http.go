package cluster

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fairgov/governor/pkg/domain"
)

const (
	networkPolicyPrefix = "/apis/networking/v1"
	genericPolicyPrefix = "/apis/policy/v1"
	workloadPrefix      = "/apis/apps/v1"
	violationsPath      = "/apis/policy/v1/violations?watch=true"

	defaultProbeTimeout = 5 * time.Second
)

// HTTPAdapterConfig describes how to reach the target cluster API.
type HTTPAdapterConfig struct {
	// BaseURL is the root of the cluster API, e.g. "https://cluster.local:6443".
	BaseURL string
	// Token, when set, is sent as a bearer token on every request.
	Token string
	// Client overrides the HTTP client; the default has no request timeout
	// so that long-lived violation watches are not cut off. Per-call
	// deadlines belong to the caller's context.
	Client *http.Client
	Logger *slog.Logger
}

// HTTPAdapter is the active adapter: it issues real create/replace/patch and
// scale calls against a cluster-style REST API. The underlying http.Client
// pools connections, so a single instance tolerates concurrent in-flight
// calls from the coordinator.
type HTTPAdapter struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPAdapter builds the adapter and probes the target once. A failed
// probe is returned as an error so the caller can make the simulated-mode
// downgrade decision explicitly instead of catching failures mid-run.
func NewHTTPAdapter(ctx context.Context, cfg HTTPAdapterConfig) (*HTTPAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("target base URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	a := &HTTPAdapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
		logger:  logger,
	}

	if err := a.probe(ctx); err != nil {
		return nil, fmt.Errorf("target probe failed: %w", err)
	}
	return a, nil
}

func (a *HTTPAdapter) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, a.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected probe status %d", resp.StatusCode)
	}
	return nil
}

// ReadResource fetches the named resource, mapping 404 to ErrNotFound.
func (a *HTTPAdapter) ReadResource(ctx context.Context, route domain.KindRoute, namespace, name string) (domain.Resource, error) {
	body, err := a.do(ctx, http.MethodGet, a.resourcePath(route, namespace, name), nil, "")
	if err != nil {
		return nil, err
	}

	var resource domain.Resource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return resource, nil
}

// CreateResource posts a new resource to the collection endpoint.
func (a *HTTPAdapter) CreateResource(ctx context.Context, route domain.KindRoute, namespace string, resource domain.Resource) error {
	_, err := a.do(ctx, http.MethodPost, a.collectionPath(route, namespace), resource, "application/json")
	return err
}

// ReplaceResource fully replaces the named resource.
func (a *HTTPAdapter) ReplaceResource(ctx context.Context, route domain.KindRoute, namespace, name string, resource domain.Resource) error {
	_, err := a.do(ctx, http.MethodPut, a.resourcePath(route, namespace, name), resource, "application/json")
	return err
}

// PatchResource merge-patches the named resource, mapping 404 to ErrNotFound.
func (a *HTTPAdapter) PatchResource(ctx context.Context, route domain.KindRoute, namespace, name string, resource domain.Resource) error {
	_, err := a.do(ctx, http.MethodPatch, a.resourcePath(route, namespace, name), resource, "application/merge-patch+json")
	return err
}

// ScaleResource blindly sets the replica count on the workload's scale
// subresource.
func (a *HTTPAdapter) ScaleResource(ctx context.Context, target domain.ScaleTarget) error {
	path := fmt.Sprintf("%s/namespaces/%s/%s/%s/scale",
		workloadPrefix, target.Namespace, workloadPlural(target.Kind), target.Name)
	body := map[string]any{"replicas": target.Replicas}
	_, err := a.do(ctx, http.MethodPut, path, body, "application/json")
	return err
}

// WatchViolations opens the newline-delimited JSON violation stream. The
// returned channel closes when the upstream ends or the context is
// cancelled; the adapter does not reconnect.
func (a *HTTPAdapter) WatchViolations(ctx context.Context) (<-chan domain.Violation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+violationsPath, nil)
	if err != nil {
		return nil, err
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open violation stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("violation stream returned status %d", resp.StatusCode)
	}

	events := make(chan domain.Violation)
	go a.streamViolations(ctx, resp.Body, events)
	return events, nil
}

func (a *HTTPAdapter) streamViolations(ctx context.Context, body io.ReadCloser, events chan<- domain.Violation) {
	defer close(events)
	defer drainAndClose(body)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var violation domain.Violation
		if err := json.Unmarshal(line, &violation); err != nil {
			a.logger.Warn("dropping undecodable violation event", "error", err)
			continue
		}

		select {
		case events <- violation:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		a.logger.Error("violation stream terminated", "error", err)
	}
}

func (a *HTTPAdapter) do(ctx context.Context, method, path string, payload any, contentType string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, summarise(body))
	}
	return body, nil
}

func (a *HTTPAdapter) authorize(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}

func (a *HTTPAdapter) collectionPath(route domain.KindRoute, namespace string) string {
	if route.Class == domain.RouteNetworkPolicy {
		return fmt.Sprintf("%s/namespaces/%s/networkpolicies", networkPolicyPrefix, namespace)
	}
	return fmt.Sprintf("%s/namespaces/%s/%s", genericPolicyPrefix, namespace, route.Plural)
}

func (a *HTTPAdapter) resourcePath(route domain.KindRoute, namespace, name string) string {
	return a.collectionPath(route, namespace) + "/" + name
}

func workloadPlural(kind domain.ScaleKind) string {
	if kind == domain.ScaleStatefulSet {
		return "statefulsets"
	}
	return "deployments"
}

func summarise(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
