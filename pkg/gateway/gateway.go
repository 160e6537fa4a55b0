package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudhands/burst/pkg/log"
	"github.com/cloudhands/burst/pkg/metrics"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/xmlnav"
	"github.com/sony/gobreaker"
)

// Credential is the HTTP header name/value pair attached to a request
// made on an artifact's behalf. A zero Credential means unauthenticated.
type Credential struct {
	HeaderKey   string
	HeaderValue string
}

// Gateway is the outbound interface every agent talks to. It is the only
// out-of-process dependency the agents have. The gateway's own tests run
// HTTPGateway against an httptest.Server; the agent tests substitute a
// fake implementation of this interface.
type Gateway interface {
	// Authenticate exchanges a provider username/password for a bearer
	// header, used by the token ingress agent.
	Authenticate(ctx context.Context, p model.Provider, user, pass string) (Credential, error)

	// ComposeVApp creates a vApp from the selected catalogue template in
	// the provider's configured VDC and returns its href.
	ComposeVApp(ctx context.Context, p model.Provider, cred Credential, choice model.CatalogueChoice, label model.Label) (string, error)

	// InstallCustomization pushes the guest customisation script onto the
	// composed vApp.
	InstallCustomization(ctx context.Context, p model.Provider, cred Credential, uri, script string) error

	// Describe fetches and parses the vApp description document.
	Describe(ctx context.Context, p model.Provider, cred Credential, uri string) (*xmlnav.Element, error)

	// Deploy issues the deploy action with the given power state.
	Deploy(ctx context.Context, p model.Provider, cred Credential, uri string, powerOn bool) error

	// Undeploy issues the undeploy action.
	Undeploy(ctx context.Context, p model.Provider, cred Credential, uri string) error

	// Delete removes the vApp entirely.
	Delete(ctx context.Context, p model.Provider, cred Credential, uri string) error

	// ApplyNAT posts an SNAT+DNAT rule pairing ipInt and ipExt to the
	// edge gateway.
	ApplyNAT(ctx context.Context, p model.Provider, cred Credential, ipInt, ipExt string) error

	// ApplyFirewall posts a firewall rule permitting traffic to ipExt.
	ApplyFirewall(ctx context.Context, p model.Provider, cred Credential, ipExt string) error
}

// Config holds the ambient settings every provider call shares.
type Config struct {
	RequestTimeout   time.Duration
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
	MaxRetries       uint
}

// DefaultConfig matches the defaults named in the external interfaces
// section: a low-seconds ambient timeout, plus a breaker that opens after
// five consecutive failures and half-opens after thirty seconds.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:   10 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
		MaxRetries:       3,
	}
}

// HTTPGateway is the concrete Gateway backed by net/http, one
// gobreaker.CircuitBreaker per configured provider name.
type HTTPGateway struct {
	client   *http.Client
	cfg      Config
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPGateway constructs a gateway whose circuit breakers are created
// lazily, one per provider name, the first time that provider is called.
func NewHTTPGateway(cfg Config) *HTTPGateway {
	return NewHTTPGatewayWithClient(cfg, &http.Client{Timeout: cfg.RequestTimeout})
}

// NewHTTPGatewayWithClient is the same as NewHTTPGateway but lets the
// caller supply the *http.Client, so tests can point it at an
// httptest.Server with a client that trusts the test certificate.
func NewHTTPGatewayWithClient(cfg Config, client *http.Client) *HTTPGateway {
	return &HTTPGateway{
		client:   client,
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (g *HTTPGateway) breakerFor(provider string) *gobreaker.CircuitBreaker {
	if b, ok := g.breakers[provider]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     g.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= g.cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Logger.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).
				Msg("provider circuit breaker state change")
			metrics.GatewayCircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	g.breakers[provider] = b
	metrics.GatewayCircuitBreakerState.WithLabelValues(provider).Set(float64(b.State()))
	return b
}

const acceptHeader = "application/*+xml;version=5.5"

func (g *HTTPGateway) do(ctx context.Context, p model.Provider, cred Credential, req *http.Request, operation string, idempotent bool) (*http.Response, error) {
	req.Header.Set("Accept", acceptHeader)
	if cred.HeaderKey != "" {
		req.Header.Set(cred.HeaderKey, cred.HeaderValue)
	}

	breaker := g.breakerFor(p.Name)
	call := func() (interface{}, error) {
		return g.client.Do(req.WithContext(ctx))
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.GatewayRequestDuration, p.Name, operation)

	if !idempotent {
		result, err := breaker.Execute(call)
		if err != nil {
			metrics.GatewayRequestsTotal.WithLabelValues(p.Name, operation, "error").Inc()
			return nil, fmt.Errorf("gateway: %s: %w", req.URL, err)
		}
		metrics.GatewayRequestsTotal.WithLabelValues(p.Name, operation, "ok").Inc()
		return result.(*http.Response), nil
	}

	op := func() (*http.Response, error) {
		result, err := breaker.Execute(call)
		if err != nil {
			return nil, err
		}
		return result.(*http.Response), nil
	}
	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(g.cfg.MaxRetries))
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(p.Name, operation, "error").Inc()
		return nil, fmt.Errorf("gateway: %s: %w", req.URL, err)
	}
	metrics.GatewayRequestsTotal.WithLabelValues(p.Name, operation, "ok").Inc()
	return resp, nil
}

func parseResponse(resp *http.Response) (*xmlnav.Element, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway: status %d: %s", resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return nil, nil
	}
	return xmlnav.ParseBytes(body)
}

func (g *HTTPGateway) baseURL(p model.Provider) string {
	scheme := "https"
	return fmt.Sprintf("%s://%s:%d/api", scheme, p.Host, p.Port)
}

func (g *HTTPGateway) Authenticate(ctx context.Context, p model.Provider, user, pass string) (Credential, error) {
	req, err := http.NewRequest(http.MethodPost, g.baseURL(p)+"/sessions", nil)
	if err != nil {
		return Credential{}, err
	}
	req.SetBasicAuth(user, pass)
	resp, err := g.do(ctx, p, Credential{}, req, "authenticate", false)
	if err != nil {
		return Credential{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Credential{}, fmt.Errorf("gateway: authenticate: status %d", resp.StatusCode)
	}
	token := resp.Header.Get("x-vcloud-authorization")
	if token == "" {
		return Credential{}, fmt.Errorf("gateway: authenticate: no authorization header in response")
	}
	return Credential{HeaderKey: "x-vcloud-authorization", HeaderValue: token}, nil
}

func (g *HTTPGateway) ComposeVApp(ctx context.Context, p model.Provider, cred Credential, choice model.CatalogueChoice, label model.Label) (string, error) {
	body, err := renderComposeVApp(composeVAppData{
		Name:          label.Name,
		Description:   label.Description,
		CatalogueName: p.CatalogueName,
		TemplateName:  choice.Name,
	})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/vdc/%s/action/composeVApp", g.baseURL(p), p.VDCName)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/vnd.vmware.vcloud.composeVAppParams+xml")
	resp, err := g.do(ctx, p, cred, req, "compose_vapp", false)
	if err != nil {
		return "", err
	}
	tree, err := parseResponse(resp)
	if err != nil {
		return "", err
	}
	found := xmlnav.FindByType(tree, xmlnav.MIMEVApp)
	if len(found) == 0 {
		return "", fmt.Errorf("gateway: composeVApp: no vApp element in response")
	}
	href, ok := found[0].Attr("href")
	if !ok {
		return "", fmt.Errorf("gateway: composeVApp: vApp element has no href")
	}
	return href, nil
}

func (g *HTTPGateway) InstallCustomization(ctx context.Context, p model.Provider, cred Credential, uri, script string) error {
	body, err := renderGuestCustomization(script)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, uri+"/guestCustomizationSection", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.vmware.vcloud.guestCustomizationSection+xml")
	resp, err := g.do(ctx, p, cred, req, "install_customization", false)
	if err != nil {
		return err
	}
	_, err = parseResponse(resp)
	return err
}

func (g *HTTPGateway) Describe(ctx context.Context, p model.Provider, cred Credential, uri string) (*xmlnav.Element, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.do(ctx, p, cred, req, "describe", true)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (g *HTTPGateway) deployAction(ctx context.Context, p model.Provider, cred Credential, uri, action string, powerOn *bool) error {
	var body []byte
	var err error
	if powerOn != nil {
		body, err = renderDeploy(*powerOn)
		if err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, uri+"/action/"+action, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.vmware.vcloud.deployVAppParams+xml")
	resp, err := g.do(ctx, p, cred, req, action, false)
	if err != nil {
		return err
	}
	_, err = parseResponse(resp)
	return err
}

func (g *HTTPGateway) Deploy(ctx context.Context, p model.Provider, cred Credential, uri string, powerOn bool) error {
	return g.deployAction(ctx, p, cred, uri, "deploy", &powerOn)
}

func (g *HTTPGateway) Undeploy(ctx context.Context, p model.Provider, cred Credential, uri string) error {
	return g.deployAction(ctx, p, cred, uri, "undeploy", nil)
}

func (g *HTTPGateway) Delete(ctx context.Context, p model.Provider, cred Credential, uri string) error {
	req, err := http.NewRequest(http.MethodDelete, uri, nil)
	if err != nil {
		return err
	}
	resp, err := g.do(ctx, p, cred, req, "delete", false)
	if err != nil {
		return err
	}
	_, err = parseResponse(resp)
	return err
}

func (g *HTTPGateway) ApplyNAT(ctx context.Context, p model.Provider, cred Credential, ipInt, ipExt string) error {
	body, err := renderNATRule(natRuleData{Internal: ipInt, External: ipExt})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/admin/network/%s/action/configureServices", g.baseURL(p), p.GatewayInterface)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.vmware.vcloud.edgeGatewayServiceConfiguration+xml")
	resp, err := g.do(ctx, p, cred, req, "apply_nat", false)
	if err != nil {
		return err
	}
	_, err = parseResponse(resp)
	return err
}

func (g *HTTPGateway) ApplyFirewall(ctx context.Context, p model.Provider, cred Credential, ipExt string) error {
	body, err := renderFirewallRule(firewallRuleData{External: ipExt})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/admin/network/%s/action/configureServices", g.baseURL(p), p.GatewayInterface)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.vmware.vcloud.edgeGatewayServiceConfiguration+xml")
	resp, err := g.do(ctx, p, cred, req, "apply_firewall", false)
	if err != nil {
		return err
	}
	_, err = parseResponse(resp)
	return err
}

var _ Gateway = (*HTTPGateway)(nil)
