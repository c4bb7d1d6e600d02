package realm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cedar-policy/cedar-go"
)

// cedarResourceID is the application-level resource every permission
// check evaluates against. Permissions name the action; the application
// itself is the resource.
const cedarResourceID = "gatewarden"

// CedarChecker is a Decider backed by a Cedar policy set. Each permission
// check is evaluated as principal User::<username>, action
// Action::<permission>, resource Application::"gatewarden", so policies
// are written like:
//
//	permit (
//	    principal == User::"alice",
//	    action == Action::"zone:read",
//	    resource
//	);
type CedarChecker struct {
	policies *cedar.PolicySet
	logger   *slog.Logger
}

// NewCedarChecker parses the policy bytes and creates a checker.
// If logger is nil, slog.Default() is used.
func NewCedarChecker(policyBytes []byte, logger *slog.Logger) (*CedarChecker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ps, err := cedar.NewPolicySetFromBytes("policies.cedar", policyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policies: %w", err)
	}
	return &CedarChecker{policies: ps, logger: logger}, nil
}

// Permits implements Decider.
func (c *CedarChecker) Permits(ctx context.Context, principal, permission string) (bool, error) {
	start := time.Now()

	principalUID := cedar.NewEntityUID("User", cedar.String(principal))
	resourceUID := cedar.NewEntityUID("Application", cedar.String(cedarResourceID))

	entities := cedar.EntityMap{
		principalUID: cedar.Entity{
			UID:        principalUID,
			Parents:    cedar.NewEntityUIDSet(),
			Attributes: cedar.NewRecord(cedar.RecordMap{}),
		},
		resourceUID: cedar.Entity{
			UID:        resourceUID,
			Parents:    cedar.NewEntityUIDSet(),
			Attributes: cedar.NewRecord(cedar.RecordMap{}),
		},
	}

	req := cedar.Request{
		Principal: principalUID,
		Action:    cedar.NewEntityUID("Action", cedar.String(permission)),
		Resource:  resourceUID,
		Context:   cedar.NewRecord(cedar.RecordMap{}),
	}

	decision, diagnostic := cedar.Authorize(c.policies, entities, req)

	policyID := ""
	if len(diagnostic.Reasons) > 0 {
		policyID = string(diagnostic.Reasons[0].PolicyID)
	}
	c.logger.Debug("permission decision",
		"principal", principal,
		"permission", permission,
		"decision", decision == cedar.Allow,
		"policy_id", policyID,
		"duration_us", time.Since(start).Microseconds(),
	)
	for _, evalErr := range diagnostic.Errors {
		c.logger.Error("policy evaluation error",
			"policy", evalErr.PolicyID,
			"error", evalErr.Message,
		)
	}

	return decision == cedar.Allow, nil
}
