package testcase

import (
	"fmt"
	"slices"

	"github.com/labx-platform/testbed/pkg/serrors"
)

var (
	complexities = []Complexity{
		ComplexityLow, ComplexityMedium, ComplexityHigh,
		ComplexityBeginner, ComplexityIntermediate, ComplexityAdvanced, ComplexityExpert,
	}
	priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
)

// Validate checks the rules every stored test case must satisfy.
func (t TestCase) Validate() error {
	errs := serrors.ValidationErrors{}
	if t.Name == "" {
		errs["name"] = "name is a required field"
	}
	if t.Category == "" {
		errs["category"] = "category is a required field"
	}
	if t.DurationMs < 0 {
		errs["duration_ms"] = "duration_ms must be 0 or greater"
	}
	if t.Complexity != "" && !slices.Contains(complexities, t.Complexity) {
		errs["complexity"] = fmt.Sprintf("complexity %q is not supported", t.Complexity)
	}
	if t.Priority != "" && !slices.Contains(priorities, t.Priority) {
		errs["priority"] = fmt.Sprintf("priority %q is not supported", t.Priority)
	}
	for i, step := range t.MessageFlow {
		if step.Direction != DirectionUL && step.Direction != DirectionDL {
			errs[fmt.Sprintf("message_flow[%d].direction", i)] = "direction must be UL or DL"
		}
		if step.Message == "" {
			errs[fmt.Sprintf("message_flow[%d].message", i)] = "message is a required field"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
