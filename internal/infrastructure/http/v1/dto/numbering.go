package dto

import (
	"time"

	"salesledger/internal/domain/numbering"
)

// CreateResolutionRequest registers a numbering resolution.
type CreateResolutionRequest struct {
	BranchID      string    `json:"branch_id" binding:"required"`
	SubLocationID string    `json:"sub_location_id"`
	Kind          string    `json:"kind" binding:"required,oneof=sale credit debit"`
	Prefix        string    `json:"prefix" binding:"required"`
	AuthorityRef  string    `json:"authority_ref"`
	RangeFrom     int64     `json:"range_from" binding:"required,gt=0"`
	RangeTo       int64     `json:"range_to" binding:"required,gtefield=RangeFrom"`
	Current       int64     `json:"current" binding:"omitempty,gtefield=RangeFrom"`
	ValidFrom     time.Time `json:"valid_from" binding:"required"`
	ValidUntil    time.Time `json:"valid_until" binding:"required"`
}

func (r *CreateResolutionRequest) ToInput() numbering.CreateInput {
	return numbering.CreateInput{
		BranchID:      r.BranchID,
		SubLocationID: r.SubLocationID,
		Kind:          numbering.Kind(r.Kind),
		Prefix:        r.Prefix,
		AuthorityRef:  r.AuthorityRef,
		RangeFrom:     r.RangeFrom,
		RangeTo:       r.RangeTo,
		Current:       r.Current,
		ValidFrom:     r.ValidFrom,
		ValidUntil:    r.ValidUntil,
	}
}

// ResolveQuery selects the resolution of a location.
type ResolveQuery struct {
	BranchID      string `form:"branch_id" binding:"required"`
	SubLocationID string `form:"sub_location_id"`
	Kind          string `form:"kind" binding:"required,oneof=sale credit debit"`
	// Date is YYYY-MM-DD; empty means today.
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// ResolveResponse is a resolution together with its limit report.
type ResolveResponse struct {
	Resolution *numbering.Resolution `json:"resolution"`
	Limits     numbering.LimitReport `json:"limits"`
}
