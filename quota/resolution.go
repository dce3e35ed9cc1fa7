package quota

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
)

// ResolutionKind selects how a subject's target is chosen for a month.
type ResolutionKind string

const (
	// CurrentOnly applies the single current config to every month,
	// including past ones. Changing a target rewrites history.
	CurrentOnly ResolutionKind = "current"

	// Versioned uses the latest dated target effective on or before
	// EffectiveAt. Subjects with no such version are omitted.
	Versioned ResolutionKind = "versioned"
)

// Resolution is the quota resolution mode. The zero value is CurrentOnly.
type Resolution struct {
	Kind ResolutionKind

	// EffectiveAt is the point in time for Versioned. Zero means the
	// first day of the requested month.
	EffectiveAt calendar.Date
}

// ParseResolution parses "current" (or "") and "versioned".
func ParseResolution(s string) (Resolution, error) {
	switch ResolutionKind(s) {
	case "", CurrentOnly:
		return Resolution{Kind: CurrentOnly}, nil
	case Versioned:
		return Resolution{Kind: Versioned}, nil
	}
	return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownResolution, s)
}

func (r Resolution) String() string {
	if r.Kind == "" {
		return string(CurrentOnly)
	}
	return string(r.Kind)
}

// trackedQuotas loads the configs of scope that belong in a view for month.
func trackedQuotas(ctx context.Context, src Source, scope Scope, month calendar.Month, res Resolution) ([]QuotaConfig, error) {
	configs, err := src.FetchActiveQuotas(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s quotas: %w", scope, err)
	}

	if res.Kind == Versioned {
		configs, err = applyVersions(ctx, src, scope, month, res, configs)
		if err != nil {
			return nil, err
		}
	}

	tracked := make([]QuotaConfig, 0, len(configs))
	for _, c := range configs {
		if c.Tracked() {
			tracked = append(tracked, c)
		}
	}
	return tracked, nil
}

func applyVersions(ctx context.Context, src Source, scope Scope, month calendar.Month, res Resolution, configs []QuotaConfig) ([]QuotaConfig, error) {
	vs, ok := src.(VersionedSource)
	if !ok {
		return nil, ErrStoreRequired
	}
	asOf := res.EffectiveAt
	if asOf.IsZero() {
		asOf = month.Start()
	}
	versions, err := vs.FetchQuotaVersions(ctx, scope, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s quota versions: %w", scope, err)
	}

	targets := make(map[string]decimal.Decimal, len(versions))
	for _, v := range versions {
		targets[v.SubjectID] = v.MonthlyTarget
	}

	out := make([]QuotaConfig, 0, len(configs))
	for _, c := range configs {
		target, ok := targets[c.SubjectID]
		if !ok {
			continue
		}
		c.MonthlyTarget = target
		out = append(out, c)
	}
	return out, nil
}
