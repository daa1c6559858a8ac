package admission

import (
	"context"
	"time"

	"github.com/mcs-platform/mcs-gateway/internal/domain/policy"
	"github.com/mcs-platform/mcs-gateway/internal/domain/proxy"
	"github.com/mcs-platform/mcs-gateway/internal/domain/ratelimit"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// Stage names, in pipeline order. Used for metrics and audit events.
const (
	StageVersionResolved    = "version_resolved"
	StageEntitlementChecked = "entitlement_checked"
	StageScopeChecked       = "scope_checked"
	StageQuotaChecked       = "quota_checked"
	StageForwarded          = "forwarded"
)

// QuotaChecker is the limiter surface the pipeline consumes.
type QuotaChecker interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) ratelimit.Result
}

// DecisionRecorder receives per-stage admission outcomes. Satisfied by
// monitoring.Metrics.
type DecisionRecorder interface {
	RecordAdmission(stage, result string)
	RecordRateLimitDenial(tenantID, graphName string)
}

// AuditSink receives denial and forwarding-failure events. Satisfied by the
// Kafka audit producer; nil disables auditing.
type AuditSink interface {
	RecordDecision(ctx context.Context, event DecisionEvent)
}

// DecisionEvent is the audit record for a terminal pipeline failure.
type DecisionEvent struct {
	RequestID string `json:"request_id"`
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	GraphName string `json:"graph_name,omitempty"`
	Stage     string `json:"stage"`
	ErrorCode string `json:"error_code"`
	Reason    string `json:"reason"`
	At        string `json:"at"`
}

// Outcome is the pipeline result. RateLimit is set for every graph-bearing
// request that reached the quota stage, allowed or denied, so the transport
// layer can always emit the rate-limit headers.
type Outcome struct {
	Response  *proxy.ForwardResponse
	RateLimit *ratelimit.Result
}

// Pipeline runs the admission stages in fixed order, short-circuiting on the
// first failure. A terminal failure at any stage never reaches the forwarder.
type Pipeline struct {
	engine    *policy.Engine
	limiter   QuotaChecker
	forwarder proxy.Forwarder
	logger    logger.Logger
	recorder  DecisionRecorder
	audit     AuditSink
}

// NewPipeline wires the admission pipeline. recorder and audit may be nil.
func NewPipeline(
	engine *policy.Engine,
	limiter QuotaChecker,
	forwarder proxy.Forwarder,
	log logger.Logger,
	recorder DecisionRecorder,
	audit AuditSink,
) *Pipeline {
	return &Pipeline{
		engine:    engine,
		limiter:   limiter,
		forwarder: forwarder,
		logger:    log.WithComponent("admission"),
		recorder:  recorder,
		audit:     audit,
	}
}

// Execute admits and forwards one request. The returned Outcome may carry a
// rate-limit result alongside an error (quota denial still reports the
// window state). All errors are GatewayErrors produced by the failing stage;
// no stage re-wraps a failure it did not produce.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Outcome, error) {
	rc := req.Context
	outcome := &Outcome{}

	// Graph-less endpoints bypass policy and quota entirely.
	if rc.GraphName != "" {
		version, err := p.engine.ResolveGraphVersion(rc.TenantID, rc.GraphName, req.RequestedVersion)
		if err != nil {
			return outcome, p.reject(ctx, rc, StageVersionResolved, err)
		}
		rc.GraphVersion = version
		p.record(StageVersionResolved, "ok")

		if err := p.engine.AssertGraphAllowed(rc.TenantID, rc.GraphName, rc.GraphVersion); err != nil {
			return outcome, p.reject(ctx, rc, StageEntitlementChecked, err)
		}
		p.record(StageEntitlementChecked, "ok")

		graph := p.engine.GraphPolicy(rc.TenantID, rc.GraphName)
		if graph == nil {
			// Snapshot changed between stages; treat as entitlement loss.
			return outcome, p.reject(ctx, rc, StageEntitlementChecked,
				errors.ErrGraphNotAllowed(rc.GraphName, rc.TenantID))
		}
		if err := p.engine.AssertScopes(graph.RequiredScopes, rc.Scopes); err != nil {
			return outcome, p.reject(ctx, rc, StageScopeChecked, err)
		}
		p.record(StageScopeChecked, "ok")

		res := p.limiter.Check(ctx, rc.RateLimitKey(), graph.Limits.RPM, constants.RateLimitWindow)
		outcome.RateLimit = &res
		if !res.Allowed {
			if p.recorder != nil {
				p.recorder.RecordRateLimitDenial(rc.TenantID, rc.GraphName)
			}
			return outcome, p.reject(ctx, rc, StageQuotaChecked,
				errors.ErrRateLimited(rc.RateLimitKey(), res.RetryAfter))
		}
		p.record(StageQuotaChecked, "ok")
	}

	resp, err := p.forwarder.Forward(ctx, p.buildForward(req), p.engine.Routing())
	if err != nil {
		return outcome, p.reject(ctx, rc, StageForwarded, err)
	}
	p.record(StageForwarded, "ok")

	outcome.Response = resp
	return outcome, nil
}

func (p *Pipeline) buildForward(req Request) proxy.ForwardRequest {
	headers := req.Context.UpstreamHeaders()
	if req.ContentType != "" {
		headers["Content-Type"] = req.ContentType
	}
	if req.Traceparent != "" {
		headers[constants.HeaderTraceparent] = req.Traceparent
	}

	return proxy.ForwardRequest{
		Method:  req.Method,
		Path:    req.UpstreamPath,
		Query:   req.Query,
		Headers: headers,
		Body:    req.Body,
	}
}

func (p *Pipeline) record(stage, result string) {
	if p.recorder != nil {
		p.recorder.RecordAdmission(stage, result)
	}
}

func (p *Pipeline) reject(ctx context.Context, rc *RequestContext, stage string, err error) error {
	gwErr, ok := errors.AsGatewayError(err)
	if !ok {
		gwErr = errors.ErrInternal("").WithCause(err)
	}

	p.record(stage, string(gwErr.Code()))
	p.logger.Info(ctx, "Request rejected",
		logger.String("stage", stage),
		logger.String("error_code", string(gwErr.Code())),
		logger.String("tenant_id", rc.TenantID),
		logger.String("graph_name", rc.GraphName),
		logger.String("request_id", rc.RequestID),
	)

	if p.audit != nil {
		p.audit.RecordDecision(ctx, DecisionEvent{
			RequestID: rc.RequestID,
			TenantID:  rc.TenantID,
			UserID:    rc.UserID,
			GraphName: rc.GraphName,
			Stage:     stage,
			ErrorCode: string(gwErr.Code()),
			Reason:    gwErr.Reason(),
			At:        time.Now().UTC().Format(time.RFC3339),
		})
	}

	return gwErr
}
