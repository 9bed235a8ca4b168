package domain

// Classification is the sensitivity label of a resource.
type Classification string

const (
	ClassificationPublic       Classification = "Public"
	ClassificationConfidential Classification = "Confidential"
)

// Resource is a protected object owned by a group.
type Resource struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	OwnerGroupID   int64          `json:"owner_group_id"`
}

// Group owns resources; membership grants relationship-based access.
type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Gate names the policy stage that produced a decision.
type Gate string

const (
	GateRBAC  Gate = "rbac"
	GateReBAC Gate = "rebac"
	GateABAC  Gate = "abac"
)

// Decision is the outcome of a policy evaluation. When Allowed is false,
// Gate and Reason describe the first gate that denied.
type Decision struct {
	Allowed bool
	Gate    Gate
	Reason  string
}

// Allow returns a positive decision; Gate records the last gate evaluated.
func Allow() Decision {
	return Decision{Allowed: true, Gate: GateABAC, Reason: "all gates passed"}
}

// Deny returns a negative decision attributed to gate.
func Deny(gate Gate, reason string) Decision {
	return Decision{Gate: gate, Reason: reason}
}
