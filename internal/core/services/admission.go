package services

import (
	"context"
	"fmt"
	"time"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
	"github.com/JeanGrijp/niji-api/internal/core/ports"
)

// Requirement declares what a protected operation needs from its caller.
type Requirement struct {
	Role   domain.Role
	Action string
}

// Admission is the outcome of a successful pass through the gate.
type Admission struct {
	Identity domain.Identity
	Decision domain.Decision
}

// Operation is a protected unit of work run with the admitted identity.
type Operation[T any] func(ctx context.Context, identity domain.Identity) (T, error)

// Gate compõe autenticação, autorização e rate limiting, nesta ordem.
type Gate struct {
	authenticator *Authenticator
	limiter       ports.RateLimiter
	now           func() time.Time
}

func NewGate(authenticator *Authenticator, limiter ports.RateLimiter, now func() time.Time) (*Gate, error) {
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Gate{authenticator: authenticator, limiter: limiter, now: now}, nil
}

type admissionState struct {
	credential  string
	requirement Requirement
	admission   Admission
}

type admissionCheck func(ctx context.Context, st *admissionState) error

// Admit runs every check in order and stops at the first rejection.
func (g *Gate) Admit(ctx context.Context, credential string, req Requirement) (Admission, error) {
	st := &admissionState{credential: credential, requirement: req}
	for _, check := range []admissionCheck{g.authenticate, g.authorize, g.checkRate} {
		if err := check(ctx, st); err != nil {
			return Admission{}, err
		}
	}
	return st.admission, nil
}

func (g *Gate) authenticate(ctx context.Context, st *admissionState) error {
	identity, err := g.authenticator.Authenticate(ctx, st.credential)
	if err != nil {
		return err
	}
	st.admission.Identity = identity
	return nil
}

func (g *Gate) authorize(_ context.Context, st *admissionState) error {
	required := st.requirement.Role
	if required == "" {
		required = domain.RoleUser
	}
	return Authorize(st.admission.Identity, required, st.requirement.Action)
}

func (g *Gate) checkRate(ctx context.Context, st *admissionState) error {
	decision, err := g.limiter.Allow(ctx, st.admission.Identity, g.now())
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return domain.Reject(domain.ErrRateLimited, "rate limit exceeded")
	}
	st.admission.Decision = decision
	return nil
}

type admissionKey struct{}

// AdmissionFromContext returns the admission Guard attached to ctx.
func AdmissionFromContext(ctx context.Context) (Admission, bool) {
	admission, ok := ctx.Value(admissionKey{}).(Admission)
	return admission, ok
}

// Guard admits the caller and then runs op. The operation's own result and
// error pass through unchanged.
func Guard[T any](ctx context.Context, g *Gate, credential string, req Requirement, op Operation[T]) (T, error) {
	admission, err := g.Admit(ctx, credential, req)
	if err != nil {
		var zero T
		return zero, err
	}
	ctx = context.WithValue(ctx, admissionKey{}, admission)
	return op(ctx, admission.Identity)
}
