package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"salesledger/internal/core/apperror"
	appctx "salesledger/internal/core/context"
	"salesledger/internal/core/id"
	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/catalogs"
	"salesledger/internal/domain/documents"
	"salesledger/internal/domain/fiscal"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/domain/pricing"
	"salesledger/internal/domain/registers/stock"
	"salesledger/pkg/logger"
)

// LineRequest is one requested sale line. Nil price and tax take the catalog
// values.
type LineRequest struct {
	ItemID      string
	Description string
	Quantity    types.Quantity
	UnitPrice   *types.Money
	DiscountPct types.Percent
	TaxPct      *types.Percent
}

// SaleRequest asks for a sale at a branch. WarehouseID defaults to BranchID.
type SaleRequest struct {
	BranchID        string
	SubLocationID   string
	WarehouseID     string
	ClientID        string
	PaymentMethodID string
	Lines           []LineRequest

	// UseAdvance is the part of the total to settle from the client's advance.
	UseAdvance types.Money
	Note       string
}

func (r SaleRequest) location() numbering.Location {
	return numbering.Location{BranchID: r.BranchID, SubLocationID: r.SubLocationID}
}

func (r SaleRequest) warehouse() string {
	if r.WarehouseID != "" {
		return r.WarehouseID
	}
	return r.BranchID
}

// SaleResult is an issued sale with its postings and any limit warnings.
type SaleResult struct {
	Sale     *documents.Sale       `json:"sale"`
	Postings []*accounting.Posting `json:"postings"`
	Warnings []numbering.Warning   `json:"warnings,omitempty"`
}

// IssueSale numbers, prices, costs and posts a sale, then schedules its
// external validation.
func (s *Service) IssueSale(ctx context.Context, req SaleRequest) (result *SaleResult, err error) {
	ctx, span := startSpan(ctx, "IssueSale", trace.WithAttributes(
		attribute.String("branch_id", req.BranchID),
		attribute.Int("lines", len(req.Lines)),
	))
	defer func() { endSpan(span, err) }()

	if err := validateSaleRequest(req); err != nil {
		return nil, err
	}
	today := s.today()

	res, report, err := s.resolve(ctx, req.location(), numbering.KindSale, today)
	if err != nil {
		return nil, err
	}

	lines, err := s.buildLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	paymentAccount := ""
	if req.PaymentMethodID != "" {
		pm, err := s.payments.GetPaymentMethod(ctx, req.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		paymentAccount = pm.Account
	}

	var client *catalogs.Client
	if req.ClientID != "" {
		unlock := s.locks.Lock("client:" + req.ClientID)
		defer unlock()
		if client, err = s.clients.GetClient(ctx, req.ClientID); err != nil {
			return nil, err
		}
	}

	warehouse := req.warehouse()
	reservation, err := s.stock.CheckAndReserve(ctx, warehouse, requirements(lines))
	if err != nil {
		return nil, err
	}
	defer reservation.Release()

	if err := s.snapshotCosts(ctx, warehouse, lines); err != nil {
		return nil, err
	}
	totals := documents.PriceLines(lines)

	advance := types.RoundMoney(req.UseAdvance)
	if advance.IsPositive() {
		if client == nil {
			return nil, apperror.NewValidation("client_id is required to use an advance")
		}
		if reason := advanceViolation(advance, client.AdvanceBalance, totals.Total); reason != "" {
			logger.Warn(ctx, "advance consumption rejected",
				"client_id", client.ID,
				"reason", reason,
				"requested", advance.String(),
				"available", client.AdvanceBalance.String(),
				"total", totals.Total.String())
			return nil, apperror.NewBusinessRule(apperror.CodeInsufficientAdvance, "Advance exceeds available balance or document total").
				WithDetail("client_id", client.ID).
				WithDetail("reason", reason).
				WithDetail("requested", advance.String()).
				WithDetail("available", client.AdvanceBalance.String()).
				WithDetail("total", totals.Total.String())
		}
	} else {
		advance = types.Zero()
	}

	sale := &documents.Sale{
		ResolutionID:     res.ID,
		Location:         req.location(),
		WarehouseID:      warehouse,
		ClientID:         req.ClientID,
		PaymentMethodID:  req.PaymentMethodID,
		IssueDate:        today,
		Lines:            lines,
		Totals:           totals,
		AdvanceApplied:   advance,
		Paid:             req.PaymentMethodID != "" || (advance.IsPositive() && advance.Equal(totals.Total)),
		Status:           documents.StatusIssued,
		ValidationStatus: documents.ValidationPending,
		Returned:         map[string]types.Quantity{},
		Note:             req.Note,
		CreatedAt:        today,
		UpdatedAt:        today,
	}

	pricedLines := documents.PricedLines(lines)
	postings, err := s.accounting.Prepare(ctx,
		accounting.Event{
			Kind:           accounting.EventSale,
			Date:           today,
			Description:    "Sale",
			Amount:         totals.Total,
			Lines:          pricedLines,
			PaymentAccount: paymentAccount,
			AdvanceApplied: advance,
		},
		accounting.Event{
			Kind:        accounting.EventCostOfSale,
			Date:        today,
			Description: "Cost of sale",
			Lines:       pricedLines,
		},
	)
	if err != nil {
		return nil, err
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		alloc, err := s.numbering.Allocate(ctx, res.ID)
		if err != nil {
			return err
		}
		sale.ID = alloc.Number
		stampPostings(postings, alloc.Number)

		if err := s.sales.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale %s: %w", sale.ID, err)
		}
		for _, l := range lines {
			if !l.Controlled {
				continue
			}
			if _, err := reservation.Apply(ctx, stock.ApplyInput{
				ItemID:       l.ItemID,
				Quantity:     l.Quantity,
				Direction:    stock.Expense,
				RecorderType: string(fiscal.KindSale),
				RecorderID:   sale.ID,
			}); err != nil {
				return err
			}
		}
		if advance.IsPositive() {
			if err := s.clients.ConsumeAdvance(ctx, req.ClientID, advance); err != nil {
				return err
			}
		}
		return s.accounting.Record(ctx, postings...)
	})
	if err != nil {
		return nil, err
	}
	reservation.Release()

	logger.Info(ctx, "sale issued",
		"document_id", sale.ID,
		"resolution_id", res.ID,
		"total", totals.Total.String(),
		"cost_total", totals.CostTotal.String(),
		"postings", len(postings))

	s.scheduleValidation(ctx, fiscal.KindSale, sale.ID, totals.Total, today)

	return &SaleResult{Sale: sale, Postings: postings, Warnings: report.Warnings}, nil
}

// resolve finds the resolution for kind at loc and fails when its limits block it.
func (s *Service) resolve(ctx context.Context, loc numbering.Location, kind numbering.Kind, today time.Time) (*numbering.Resolution, numbering.LimitReport, error) {
	res, err := s.numbering.Resolve(ctx, loc, kind, today)
	if err != nil {
		return nil, numbering.LimitReport{}, err
	}
	report := s.numbering.CheckLimits(res, today)
	if err := report.Err(); err != nil {
		return nil, report, err
	}
	for _, w := range report.Warnings {
		logger.Warn(ctx, "numbering resolution near its limits",
			"resolution_id", res.ID, "code", w.Code, "message", w.Message)
	}
	return res, report, nil
}

// buildLines resolves catalog items and applies per-line overrides.
func (s *Service) buildLines(ctx context.Context, reqs []LineRequest) ([]documents.LineItem, error) {
	lines := make([]documents.LineItem, 0, len(reqs))
	for i, r := range reqs {
		item, err := s.items.GetItem(ctx, r.ItemID)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line", i)
			}
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		l := documents.LineItem{
			LineNo:      i + 1,
			ItemID:      item.ID,
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   item.Price,
			DiscountPct: r.DiscountPct,
			TaxPct:      item.TaxPct,
			UnitCost:    item.Cost,
			Controlled:  item.Controlled,
			Accounts:    item.Accounts,
		}
		if l.Description == "" {
			l.Description = item.Name
		}
		if r.UnitPrice != nil {
			l.UnitPrice = *r.UnitPrice
		}
		if r.TaxPct != nil {
			l.TaxPct = *r.TaxPct
		}
		lines = append(lines, l)
	}

	pl := make([]pricing.Line, len(lines))
	for i, l := range lines {
		pl[i] = l.PricingLine()
	}
	if err := pricing.Validate(pl); err != nil {
		return nil, err
	}
	return lines, nil
}

// snapshotCosts fixes the unit cost of controlled lines to the ledger
// average. Items never received keep their catalog cost.
func (s *Service) snapshotCosts(ctx context.Context, locationID string, lines []documents.LineItem) error {
	for i := range lines {
		if !lines[i].Controlled {
			continue
		}
		rec, err := s.stock.GetRecord(ctx, lines[i].ItemID, locationID)
		if err != nil {
			return err
		}
		if rec.Quantity > 0 || !rec.AvgCost.IsZero() {
			lines[i].UnitCost = rec.AvgCost
		}
	}
	return nil
}

func (s *Service) scheduleValidation(ctx context.Context, kind fiscal.DocumentKind, documentID string, total types.Money, issuedAt time.Time) {
	if s.dispatcher == nil {
		return
	}
	req := fiscal.Request{
		AttemptID:  id.NewValidationID(),
		DocumentID: documentID,
		Kind:       kind,
		Number:     documentID,
		Total:      total,
		IssuedAt:   issuedAt,
	}
	ctx = appctx.WithDocument(ctx, documentID)
	if err := s.dispatcher.Schedule(appctx.Detach(ctx), req); err != nil {
		logger.Error(ctx, "schedule validation failed", "error", err)
	}
}

// advanceViolation names the bound a requested advance breaks, or "" when it
// can be consumed.
func advanceViolation(requested, balance, total types.Money) string {
	switch {
	case requested.GreaterThan(balance):
		return "exceeds_balance"
	case requested.GreaterThan(total):
		return "exceeds_total"
	}
	return ""
}

func requirements(lines []documents.LineItem) []stock.Requirement {
	reqs := make([]stock.Requirement, 0, len(lines))
	for _, l := range lines {
		reqs = append(reqs, stock.Requirement{ItemID: l.ItemID, Quantity: l.Quantity, Controlled: l.Controlled})
	}
	return reqs
}

// stampPostings binds postings prepared before allocation to their document.
func stampPostings(postings []*accounting.Posting, documentID string) {
	for _, p := range postings {
		p.DocumentID = documentID
		p.Description = p.Description + " " + documentID
	}
}

func validateSaleRequest(req SaleRequest) error {
	if strings.TrimSpace(req.BranchID) == "" {
		return apperror.NewValidation("branch_id is required")
	}
	if len(req.Lines) == 0 {
		return apperror.NewValidation("sale must have at least one line")
	}
	for i, l := range req.Lines {
		if strings.TrimSpace(l.ItemID) == "" {
			return apperror.NewValidation("item_id is required").WithDetail("line", i)
		}
	}
	if req.UseAdvance.IsNegative() {
		return apperror.NewValidation("use_advance must not be negative")
	}
	return nil
}
