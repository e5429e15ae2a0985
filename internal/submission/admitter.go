package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/vegshop/vegshop-backend/pkg/config"
)

// Policies accepted by NewAdmitter.
const (
	PolicyQueue  = config.SubmissionPolicyQueue
	PolicyReject = config.SubmissionPolicyReject
)

// Admitter is the common shape of Queue and Gate.
type Admitter interface {
	Do(ctx context.Context, session string, fn func(ctx context.Context) error) error
}

// NewAdmitter picks the queue or the reject gate. The gate is required only
// for the reject policy.
func NewAdmitter(policy string, queue *Queue, gate *Gate) (Admitter, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case PolicyQueue, "":
		if queue == nil {
			return nil, fmt.Errorf("submission queue required")
		}
		return queue, nil
	case PolicyReject:
		if gate == nil {
			return nil, fmt.Errorf("submission gate required")
		}
		return gate, nil
	default:
		return nil, fmt.Errorf("unknown submission policy %q", policy)
	}
}
