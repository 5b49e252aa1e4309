package numbering

import (
	"context"
	"sort"
	"time"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/id"
	"salesledger/internal/core/keylock"
	"salesledger/pkg/logger"
)

// Allocation is an issued document number.
type Allocation struct {
	ResolutionID string `json:"resolution_id"`
	Number       string `json:"number"`
	Sequence     int64  `json:"sequence"`
}

// Service is the numbering authority.
type Service struct {
	repo     Repository
	locks    *keylock.Locker
	limits   Limits
	padWidth int
	now      func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithLimits overrides the warning thresholds.
func WithLimits(l Limits) Option { return func(s *Service) { s.limits = l } }

// WithPadWidth overrides the minimum digit count of issued numbers.
func WithPadWidth(w int) Option { return func(s *Service) { s.padWidth = w } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates the numbering authority over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		locks:    keylock.New(),
		limits:   DefaultLimits(),
		padWidth: DefaultPadWidth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve selects the resolution used to number a document of kind at loc on asOf.
// A resolution bound to loc's sub-location wins over a branch-wide one; among
// equals, one with numbers left wins, then the most recently started one.
func (s *Service) Resolve(ctx context.Context, loc Location, kind Kind, asOf time.Time) (*Resolution, error) {
	candidates, err := s.repo.FindActive(ctx, loc.BranchID, kind)
	if err != nil {
		return nil, err
	}

	matching := make([]*Resolution, 0, len(candidates))
	for _, r := range candidates {
		if r.Active && r.Kind == kind && r.Matches(loc) && r.Covers(asOf) {
			matching = append(matching, r)
		}
	}
	if len(matching) == 0 {
		return nil, apperror.NewResolutionNotFound(loc.BranchID, loc.SubLocationID, string(kind))
	}

	sort.SliceStable(matching, func(i, j int) bool {
		a, b := matching[i], matching[j]
		if (a.SubLocationID != "") != (b.SubLocationID != "") {
			return a.SubLocationID != ""
		}
		if a.Exhausted() != b.Exhausted() {
			return !a.Exhausted()
		}
		return a.ValidFrom.After(b.ValidFrom)
	})
	return matching[0], nil
}

// CheckLimits reports near-expiry and near-exhaustion warnings and the hard
// failures (expired, exhausted, inactive) that block issuing on asOf.
func (s *Service) CheckLimits(res *Resolution, asOf time.Time) LimitReport {
	return checkLimits(res, asOf, s.limits)
}

// Allocate issues the next number of a resolution. Concurrent callers on the
// same resolution are serialized; numbers are never issued twice.
func (s *Service) Allocate(ctx context.Context, resolutionID string) (Allocation, error) {
	unlock := s.locks.Lock("resolution:" + resolutionID)
	defer unlock()

	res, err := s.repo.GetByID(ctx, resolutionID)
	if err != nil {
		return Allocation{}, err
	}

	seq, err := s.repo.Increment(ctx, resolutionID)
	if err != nil {
		return Allocation{}, err
	}

	alloc := Allocation{
		ResolutionID: resolutionID,
		Number:       FormatNumber(res.Prefix, seq, s.padWidth),
		Sequence:     seq,
	}
	logger.Debug(ctx, "number allocated", "resolution_id", resolutionID, "number", alloc.Number)
	return alloc, nil
}

// CreateInput describes a new resolution.
type CreateInput struct {
	BranchID      string
	SubLocationID string
	Kind          Kind
	Prefix        string
	AuthorityRef  string
	RangeFrom     int64
	RangeTo       int64
	Current       int64
	ValidFrom     time.Time
	ValidUntil    time.Time
}

// Create registers a new active resolution. Current defaults to RangeFrom.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Resolution, error) {
	res := &Resolution{
		ID:            id.NewResolutionID(),
		BranchID:      in.BranchID,
		SubLocationID: in.SubLocationID,
		Kind:          in.Kind,
		Prefix:        in.Prefix,
		AuthorityRef:  in.AuthorityRef,
		RangeFrom:     in.RangeFrom,
		RangeTo:       in.RangeTo,
		Current:       in.Current,
		ValidFrom:     in.ValidFrom,
		ValidUntil:    in.ValidUntil,
		Active:        true,
		CreatedAt:     s.now().UTC(),
	}
	if res.Current == 0 {
		res.Current = res.RangeFrom
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	logger.Info(ctx, "numbering resolution created",
		"resolution_id", res.ID, "branch_id", res.BranchID, "kind", res.Kind, "prefix", res.Prefix)
	return res, nil
}

// Get returns one resolution.
func (s *Service) Get(ctx context.Context, resolutionID string) (*Resolution, error) {
	return s.repo.GetByID(ctx, resolutionID)
}

// List returns the resolutions of a branch.
func (s *Service) List(ctx context.Context, branchID string) ([]*Resolution, error) {
	return s.repo.ListByBranch(ctx, branchID)
}

// Deactivate withdraws a resolution; already issued numbers stay valid.
func (s *Service) Deactivate(ctx context.Context, resolutionID string) error {
	unlock := s.locks.Lock("resolution:" + resolutionID)
	defer unlock()

	if err := s.repo.SetActive(ctx, resolutionID, false); err != nil {
		return err
	}
	logger.Info(ctx, "numbering resolution deactivated", "resolution_id", resolutionID)
	return nil
}
