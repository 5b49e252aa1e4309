package numbering

import (
	"fmt"
	"time"

	"salesledger/internal/core/apperror"
)

// WarningCode classifies a limit check finding.
type WarningCode string

const (
	WarnNearExpiry     WarningCode = "near_expiry"
	WarnNearExhaustion WarningCode = "near_exhaustion"
	WarnExpired        WarningCode = "expired"
	WarnExhausted      WarningCode = "exhausted"
	WarnInactive       WarningCode = "inactive"
	WarnNotYetValid    WarningCode = "not_yet_valid"
)

// Blocking reports whether the finding prevents issuing documents.
func (c WarningCode) Blocking() bool {
	switch c {
	case WarnExpired, WarnExhausted, WarnInactive, WarnNotYetValid:
		return true
	}
	return false
}

// Warning is one finding of a limit check.
type Warning struct {
	Code        WarningCode `json:"code"`
	Message     string      `json:"message"`
	DaysLeft    int         `json:"days_left"`
	NumbersLeft int64       `json:"numbers_left"`
}

// LimitReport is the outcome of CheckLimits. OK is false when any warning is blocking.
type LimitReport struct {
	ResolutionID string    `json:"resolution_id"`
	OK           bool      `json:"ok"`
	Warnings     []Warning `json:"warnings"`
}

// Err converts a failed report into the AppError of its first blocking finding.
// All findings are attached under "warnings".
func (r LimitReport) Err() error {
	if r.OK {
		return nil
	}
	for _, w := range r.Warnings {
		if !w.Code.Blocking() {
			continue
		}
		code := apperror.CodeResolutionInactive
		switch w.Code {
		case WarnExpired:
			code = apperror.CodeResolutionExpired
		case WarnExhausted:
			code = apperror.CodeResolutionExhausted
		}
		return apperror.NewResolutionBlocked(code, r.ResolutionID, w.Message).
			WithDetail("warnings", r.Warnings)
	}
	return apperror.NewResolutionBlocked(apperror.CodeResolutionInactive, r.ResolutionID, "resolution is not usable")
}

// Limits holds the warning thresholds.
type Limits struct {
	ExpiryWarningDays int
	ExhaustionWarning int64
}

// DefaultLimits warns 30 days before expiry and with 100 numbers left.
func DefaultLimits() Limits {
	return Limits{ExpiryWarningDays: 30, ExhaustionWarning: 100}
}

func checkLimits(res *Resolution, asOf time.Time, lim Limits) LimitReport {
	report := LimitReport{ResolutionID: res.ID, OK: true, Warnings: []Warning{}}
	daysLeft := DaysBetween(asOf, res.ValidUntil)
	left := res.Remaining()

	add := func(code WarningCode, msg string) {
		report.Warnings = append(report.Warnings, Warning{
			Code:        code,
			Message:     msg,
			DaysLeft:    daysLeft,
			NumbersLeft: left,
		})
		if code.Blocking() {
			report.OK = false
		}
	}

	if !res.Active {
		add(WarnInactive, fmt.Sprintf("resolution %s is inactive", res.ID))
	}
	switch {
	case daysLeft < 0:
		add(WarnExpired, fmt.Sprintf("resolution %s expired on %s", res.ID, res.ValidUntil.Format(time.DateOnly)))
	case DaysBetween(res.ValidFrom, asOf) < 0:
		add(WarnNotYetValid, fmt.Sprintf("resolution %s is valid from %s", res.ID, res.ValidFrom.Format(time.DateOnly)))
	case daysLeft <= lim.ExpiryWarningDays:
		add(WarnNearExpiry, fmt.Sprintf("resolution %s expires in %d day(s)", res.ID, daysLeft))
	}
	switch {
	case res.Exhausted():
		add(WarnExhausted, fmt.Sprintf("resolution %s has issued its whole range up to %d", res.ID, res.RangeTo))
	case left <= lim.ExhaustionWarning:
		add(WarnNearExhaustion, fmt.Sprintf("resolution %s has %d number(s) left", res.ID, left))
	}

	return report
}
