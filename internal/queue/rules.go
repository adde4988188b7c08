package queue

import (
	"context"

	"github.com/fieldtrack/assetsync/internal/models"
)

// Rule escalates or demotes queued operations during a reprioritization
// pass. Matches is evaluated against operations that are still pending or
// retrying; leased (processing) operations are never touched.
type Rule struct {
	Name     string
	Matches  func(op *models.Operation) bool
	Priority models.Priority
}

// DefaultRules returns the built-in escalation rules: scans flagged urgent
// and updates flagged security-related jump to high priority.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "urgent-scan",
			Matches: func(op *models.Operation) bool {
				return op.Type == models.OperationScan && flagSet(op.Payload, "urgent")
			},
			Priority: models.PriorityHigh,
		},
		{
			Name: "security-update",
			Matches: func(op *models.Operation) bool {
				return op.Type == models.OperationUpdate && flagSet(op.Payload, "securityRelated")
			},
			Priority: models.PriorityHigh,
		},
	}
}

// Reprioritize recomputes priorities for queued-but-not-processing
// operations using the first matching rule per operation. It returns the
// number of operations whose priority changed.
func (q *Queue) Reprioritize(ctx context.Context, rules []Rule) (int, error) {
	// The pending scan is bounded: reprioritization is an occasional
	// maintenance pass, not part of the hot path.
	ops, err := q.ops.FindPending(ctx, 1000)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, op := range ops {
		for _, rule := range rules {
			if !rule.Matches(op) {
				continue
			}
			if op.Priority == rule.Priority {
				break
			}
			if err := q.ops.UpdatePriority(ctx, op.ID, rule.Priority); err != nil {
				return changed, err
			}
			q.log.Debug(ctx, "operation reprioritized",
				"operation_id", op.ID, "rule", rule.Name, "priority", rule.Priority)
			changed++
			break
		}
	}
	return changed, nil
}

func flagSet(payload map[string]any, key string) bool {
	if payload == nil {
		return false
	}
	v, ok := payload[key].(bool)
	return ok && v
}
