// Package policy decides whether a principal may access a resource. Three
// gates run in order and the first denial wins: role (RBAC), group
// relationship (ReBAC), then network attributes (ABAC).
package policy

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/aipowereddevteam/auth2026/internal/domain"
	apperrors "github.com/aipowereddevteam/auth2026/pkg/errors"
	"github.com/aipowereddevteam/auth2026/pkg/netutil"
)

// DefaultTrustedCIDRs is the trusted network used when none is configured.
var DefaultTrustedCIDRs = []string{"10.0.0.0/8", "127.0.0.1/32", "::1/128"}

// ResourceStore looks up resource metadata. A missing resource returns an
// error matching apperrors.ErrNotFound.
type ResourceStore interface {
	GetResource(ctx context.Context, id int64) (*domain.Resource, error)
}

// GroupStore answers membership questions.
type GroupStore interface {
	IsMember(ctx context.Context, groupID, principalID int64) (bool, error)
}

// Subject is the authenticated caller.
type Subject struct {
	PrincipalID int64
	Role        domain.Role
}

// request is the state threaded through the gates.
type request struct {
	subject    Subject
	resourceID int64
	sourceAddr string
	resource   *domain.Resource
}

// gate evaluates one stage. A non-empty deny reason stops the pipeline.
type gate struct {
	name domain.Gate
	eval func(ctx context.Context, r *request) (deny string, err error)
}

// Engine evaluates access decisions. It holds no per-request state.
type Engine struct {
	resources ResourceStore
	groups    GroupStore
	trusted   []netip.Prefix
	gates     []gate
}

// NewEngine creates a decision engine. An empty trusted set means
// DefaultTrustedCIDRs.
func NewEngine(resources ResourceStore, groups GroupStore, trusted []netip.Prefix) *Engine {
	if len(trusted) == 0 {
		trusted, _ = netutil.ParsePrefixes(DefaultTrustedCIDRs)
	}
	e := &Engine{resources: resources, groups: groups, trusted: trusted}
	e.gates = []gate{
		{domain.GateRBAC, e.rbac},
		{domain.GateReBAC, e.rebac},
		{domain.GateABAC, e.abac},
	}
	return e
}

// Decide runs the gates for subject, resourceID and the caller's source
// address (which may carry a port or be IPv4-mapped IPv6). A lookup failure
// is returned as an error, never as a denial.
func (e *Engine) Decide(ctx context.Context, subject Subject, resourceID int64, sourceAddr string) (domain.Decision, error) {
	r := &request{subject: subject, resourceID: resourceID, sourceAddr: sourceAddr}
	for _, g := range e.gates {
		deny, err := g.eval(ctx, r)
		if err != nil {
			decisionErrorsTotal.WithLabelValues(string(g.name)).Inc()
			return domain.Decision{}, err
		}
		if deny != "" {
			decisionsTotal.WithLabelValues(string(g.name), "deny").Inc()
			return domain.Deny(g.name, deny), nil
		}
	}
	decisionsTotal.WithLabelValues(string(domain.GateABAC), "allow").Inc()
	return domain.Allow(), nil
}

func (e *Engine) rbac(_ context.Context, r *request) (string, error) {
	if r.subject.Role == domain.RoleGuest || !domain.IsValidRole(string(r.subject.Role)) {
		return fmt.Sprintf("role %q may not access resources", r.subject.Role), nil
	}
	return "", nil
}

func (e *Engine) rebac(ctx context.Context, r *request) (string, error) {
	res, err := e.resources.GetResource(ctx, r.resourceID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "resource does not exist", nil
		}
		return "", fmt.Errorf("load resource %d: %w", r.resourceID, err)
	}
	r.resource = res

	if r.subject.Role == domain.RoleAdmin {
		return "", nil
	}
	member, err := e.groups.IsMember(ctx, res.OwnerGroupID, r.subject.PrincipalID)
	if err != nil {
		return "", fmt.Errorf("check membership of group %d: %w", res.OwnerGroupID, err)
	}
	if !member {
		return "not a member of the owning group", nil
	}
	return "", nil
}

func (e *Engine) abac(_ context.Context, r *request) (string, error) {
	if r.resource.Classification != domain.ClassificationConfidential {
		return "", nil
	}
	if !netutil.Contains(e.trusted, r.sourceAddr) {
		return "confidential resource requires a trusted network", nil
	}
	return "", nil
}
