package numbering_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesledger/internal/core/apperror"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/infrastructure/storage/memory"
)

var today = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*numbering.Service, *memory.ResolutionRepo) {
	t.Helper()
	repo := memory.NewResolutionRepo()
	svc := numbering.NewService(repo, numbering.WithClock(func() time.Time { return today }))
	return svc, repo
}

func createResolution(t *testing.T, svc *numbering.Service, in numbering.CreateInput) *numbering.Resolution {
	t.Helper()
	if in.Kind == "" {
		in.Kind = numbering.KindSale
	}
	if in.Prefix == "" {
		in.Prefix = "FE"
	}
	if in.RangeFrom == 0 {
		in.RangeFrom = 1
	}
	if in.RangeTo == 0 {
		in.RangeTo = 5000
	}
	if in.ValidFrom.IsZero() {
		in.ValidFrom = today.AddDate(0, -1, 0)
	}
	if in.ValidUntil.IsZero() {
		in.ValidUntil = today.AddDate(1, 0, 0)
	}
	res, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	return res
}

func TestResolvePrefersSubLocation(t *testing.T) {
	svc, _ := newService(t)
	branchWide := createResolution(t, svc, numbering.CreateInput{BranchID: "b1", Prefix: "FE"})
	tillOnly := createResolution(t, svc, numbering.CreateInput{BranchID: "b1", SubLocationID: "till-2", Prefix: "FT"})
	createResolution(t, svc, numbering.CreateInput{BranchID: "b1", Kind: numbering.KindCredit, Prefix: "NC"})

	ctx := context.Background()

	got, err := svc.Resolve(ctx, numbering.Location{BranchID: "b1", SubLocationID: "till-2"}, numbering.KindSale, today)
	require.NoError(t, err)
	assert.Equal(t, tillOnly.ID, got.ID)

	got, err = svc.Resolve(ctx, numbering.Location{BranchID: "b1", SubLocationID: "till-9"}, numbering.KindSale, today)
	require.NoError(t, err)
	assert.Equal(t, branchWide.ID, got.ID)

	got, err = svc.Resolve(ctx, numbering.Location{BranchID: "b1"}, numbering.KindCredit, today)
	require.NoError(t, err)
	assert.Equal(t, "NC", got.Prefix)
}

func TestResolveNotFound(t *testing.T) {
	svc, _ := newService(t)
	res := createResolution(t, svc, numbering.CreateInput{BranchID: "b1"})
	ctx := context.Background()

	_, err := svc.Resolve(ctx, numbering.Location{BranchID: "b2"}, numbering.KindSale, today)
	assert.True(t, apperror.HasCode(err, apperror.CodeResolutionNotFound))

	_, err = svc.Resolve(ctx, numbering.Location{BranchID: "b1"}, numbering.KindSale, today.AddDate(2, 0, 0))
	assert.True(t, apperror.HasCode(err, apperror.CodeResolutionNotFound))

	require.NoError(t, svc.Deactivate(ctx, res.ID))
	_, err = svc.Resolve(ctx, numbering.Location{BranchID: "b1"}, numbering.KindSale, today)
	assert.True(t, apperror.HasCode(err, apperror.CodeResolutionNotFound))
}

func TestCheckLimits(t *testing.T) {
	svc, _ := newService(t)

	base := numbering.Resolution{
		ID:         "res-1",
		Prefix:     "FE",
		RangeFrom:  1,
		RangeTo:    1000,
		Current:    1,
		ValidFrom:  today.AddDate(0, -6, 0),
		ValidUntil: today.AddDate(0, 6, 0),
		Active:     true,
	}

	tests := []struct {
		name     string
		mutate   func(r *numbering.Resolution)
		wantOK   bool
		wantCode []numbering.WarningCode
		wantErr  string
	}{
		{
			name:   "healthy",
			mutate: func(r *numbering.Resolution) {},
			wantOK: true,
		},
		{
			name:     "near expiry",
			mutate:   func(r *numbering.Resolution) { r.ValidUntil = today.AddDate(0, 0, 30) },
			wantOK:   true,
			wantCode: []numbering.WarningCode{numbering.WarnNearExpiry},
		},
		{
			name:     "near exhaustion",
			mutate:   func(r *numbering.Resolution) { r.Current = 901 },
			wantOK:   true,
			wantCode: []numbering.WarningCode{numbering.WarnNearExhaustion},
		},
		{
			name:     "expired",
			mutate:   func(r *numbering.Resolution) { r.ValidUntil = today.AddDate(0, 0, -1) },
			wantCode: []numbering.WarningCode{numbering.WarnExpired},
			wantErr:  apperror.CodeResolutionExpired,
		},
		{
			name:     "exhausted",
			mutate:   func(r *numbering.Resolution) { r.Current = 1001 },
			wantCode: []numbering.WarningCode{numbering.WarnExhausted},
			wantErr:  apperror.CodeResolutionExhausted,
		},
		{
			name:     "inactive",
			mutate:   func(r *numbering.Resolution) { r.Active = false },
			wantCode: []numbering.WarningCode{numbering.WarnInactive},
			wantErr:  apperror.CodeResolutionInactive,
		},
		{
			name: "expires today with one number left",
			mutate: func(r *numbering.Resolution) {
				r.ValidUntil = today
				r.Current = 1000
			},
			wantOK:   true,
			wantCode: []numbering.WarningCode{numbering.WarnNearExpiry, numbering.WarnNearExhaustion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := base
			tt.mutate(&res)

			report := svc.CheckLimits(&res, today)
			assert.Equal(t, tt.wantOK, report.OK)

			codes := make([]numbering.WarningCode, 0, len(report.Warnings))
			for _, w := range report.Warnings {
				codes = append(codes, w.Code)
			}
			if len(tt.wantCode) == 0 {
				assert.Empty(t, codes)
			} else {
				assert.Equal(t, tt.wantCode, codes)
			}

			if tt.wantErr == "" {
				assert.NoError(t, report.Err())
			} else {
				assert.True(t, apperror.HasCode(report.Err(), tt.wantErr))
			}
		})
	}
}

func TestAllocateSequential(t *testing.T) {
	svc, _ := newService(t)
	res := createResolution(t, svc, numbering.CreateInput{BranchID: "b1", RangeFrom: 1, RangeTo: 3})
	ctx := context.Background()

	for _, want := range []string{"FE-001", "FE-002", "FE-003"} {
		alloc, err := svc.Allocate(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, want, alloc.Number)
	}

	_, err := svc.Allocate(ctx, res.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeResolutionExhausted))

	stored, err := svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stored.Current)
	assert.False(t, svc.CheckLimits(stored, today).OK)
}

func TestAllocateConcurrentIsGapFree(t *testing.T) {
	svc, _ := newService(t)
	res := createResolution(t, svc, numbering.CreateInput{BranchID: "b1", RangeFrom: 10, RangeTo: 10_000})
	ctx := context.Background()

	const workers = 200
	seqs := make([]int64, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alloc, err := svc.Allocate(ctx, res.ID)
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			seqs[i] = alloc.Sequence
		}(i)
	}
	wg.Wait()

	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, s := range seqs {
		assert.Equal(t, int64(10+i), s)
	}
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, numbering.CreateInput{
		BranchID: "b1", Kind: numbering.KindSale, Prefix: "FE",
		RangeFrom: 10, RangeTo: 5,
		ValidFrom: today, ValidUntil: today,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.Create(ctx, numbering.CreateInput{
		BranchID: "b1", Kind: "receipt", Prefix: "FE",
		RangeFrom: 1, RangeTo: 5,
		ValidFrom: today, ValidUntil: today,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestFormatAndParseNumber(t *testing.T) {
	assert.Equal(t, "FE-001", numbering.FormatNumber("FE", 1, 3))
	assert.Equal(t, "FE-12345", numbering.FormatNumber("FE", 12345, 3))
	assert.Equal(t, "NC-000042", numbering.FormatNumber("NC", 42, 6))

	prefix, seq, err := numbering.ParseNumber("SETP-0990")
	require.NoError(t, err)
	assert.Equal(t, "SETP", prefix)
	assert.Equal(t, int64(990), seq)

	_, _, err = numbering.ParseNumber("FE")
	assert.Error(t, err)
	_, _, err = numbering.ParseNumber("FE-x1")
	assert.Error(t, err)
}
