package membership

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"tg_channel_gate_bot/internal/channel"
)

// Provider looks up a user's membership status in one channel.
type Provider interface {
	GetStatus(ctx context.Context, ref channel.Reference, userID int64) (MemberStatus, error)
}

// Check is the outcome of a single per-channel lookup.
type Check struct {
	Channel    channel.Reference
	Status     MemberStatus
	Err        error
	Qualifying bool
}

// Verdict is the result of one verification pass for one user.
type Verdict struct {
	AllJoined bool
	Missing   []channel.Reference
	Checks    []Check
}

// Verify queries the provider once per registered channel concurrently and
// waits for every lookup. Missing keeps registry order regardless of which
// lookup finishes first. Provider errors count as not joined and are kept in
// Checks. An empty registry yields a vacuous AllJoined verdict; callers are
// expected to handle that case before calling.
func Verify(ctx context.Context, registry channel.Registry, userID int64, provider Provider) Verdict {
	if provider == nil {
		panic("membership: Verify called with nil provider")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	refs := registry.All()
	checks := make([]Check, len(refs))

	p := pool.New()
	for idx, ref := range refs {
		idx, ref := idx, ref
		p.Go(func() {
			status, err := provider.GetStatus(ctx, ref, userID)
			if err != nil {
				status = MemberStatus{}
			}
			checks[idx] = Check{
				Channel:    ref,
				Status:     status,
				Err:        err,
				Qualifying: err == nil && IsQualifyingMember(status),
			}
		})
	}
	p.Wait()

	missing := make([]channel.Reference, 0, len(checks))
	for _, check := range checks {
		if !check.Qualifying {
			missing = append(missing, check.Channel)
		}
	}

	return Verdict{
		AllJoined: len(missing) == 0,
		Missing:   missing,
		Checks:    checks,
	}
}

// Errors returns the checks whose lookup failed.
func (v Verdict) Errors() []Check {
	var failed []Check
	for _, check := range v.Checks {
		if check.Err != nil {
			failed = append(failed, check)
		}
	}
	return failed
}
