package invoicing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"salesledger/internal/core/apperror"
	"salesledger/internal/core/types"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/documents"
	"salesledger/internal/domain/fiscal"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/domain/registers/stock"
	"salesledger/pkg/logger"
)

const dateLayout = "2006-01-02"

// ReturnLine asks to return a quantity of one item.
type ReturnLine struct {
	ItemID   string
	Quantity types.Quantity
}

// ReturnRequest asks for a return or a void of a sale. A void with no lines
// returns everything still outstanding.
type ReturnRequest struct {
	SaleID string
	Reason string
	Lines  []ReturnLine
}

func (r ReturnRequest) isVoid() bool {
	return r.Reason == documents.ReasonVoid
}

// ReturnResult is an issued return with its postings and the updated sale.
type ReturnResult struct {
	Return   *documents.Return     `json:"return"`
	Sale     *documents.Sale       `json:"sale"`
	Postings []*accounting.Posting `json:"postings"`
	Warnings []numbering.Warning   `json:"warnings,omitempty"`
}

// lineViolation describes one rejected return line.
type lineViolation struct {
	ItemID    string         `json:"item_id"`
	Requested types.Quantity `json:"requested"`
	Remaining types.Quantity `json:"remaining"`
}

// IssueReturn credits part or all of a sale. Returned lines keep the price,
// discount, tax and unit cost of the sale lines they come from.
func (s *Service) IssueReturn(ctx context.Context, req ReturnRequest) (result *ReturnResult, err error) {
	ctx, span := startSpan(ctx, "IssueReturn", trace.WithAttributes(
		attribute.String("sale_id", req.SaleID),
		attribute.String("reason", req.Reason),
	))
	defer func() { endSpan(span, err) }()

	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		return nil, apperror.NewValidation("reason is required")
	}

	unlock := s.locks.Lock("sale:" + req.SaleID)
	defer unlock()

	sale, err := s.sales.Get(ctx, req.SaleID)
	if err != nil {
		return nil, err
	}
	if sale.Returned == nil {
		sale.Returned = map[string]types.Quantity{}
	}
	if sale.Status == documents.StatusVoided || sale.FullyReturned() {
		return nil, apperror.NewAlreadyReturned(sale.ID, string(sale.Status))
	}

	today := s.today()
	if req.isVoid() && !documents.CanVoid(sale, today) {
		return nil, apperror.NewVoidNotAllowed(sale.ID,
			sale.IssueDate.In(today.Location()).Format(dateLayout),
			today.Format(dateLayout))
	}

	order, quantities, err := returnQuantities(sale, req)
	if err != nil {
		return nil, err
	}

	res, report, err := s.resolve(ctx, sale.Location, numbering.KindCredit, today)
	if err != nil {
		return nil, err
	}

	lines := make([]documents.LineItem, 0, len(order))
	for _, itemID := range order {
		for _, sl := range sale.Split(itemID, quantities[itemID]) {
			l := sale.Lines[sl.LineIndex]
			l.LineNo = len(lines) + 1
			l.Quantity = sl.Quantity
			lines = append(lines, l)
		}
	}
	totals := documents.PriceLines(lines)

	creditAdvance := sale.Paid && sale.ClientID != ""
	kind := accounting.EventReturn
	if req.isVoid() {
		kind = accounting.EventVoid
	}
	pricedLines := documents.PricedLines(lines)
	postings, err := s.accounting.Prepare(ctx,
		accounting.Event{
			Kind:         kind,
			Date:         today,
			Description:  "Return of " + sale.ID,
			Amount:       totals.Total,
			Lines:        pricedLines,
			OriginalPaid: creditAdvance,
		},
		accounting.Event{
			Kind:        accounting.EventCostReversal,
			Date:        today,
			Description: "Cost reversal of " + sale.ID,
			Lines:       pricedLines,
		},
	)
	if err != nil {
		return nil, err
	}

	ret := &documents.Return{
		OriginalID:       sale.ID,
		ResolutionID:     res.ID,
		Location:         sale.Location,
		WarehouseID:      sale.WarehouseID,
		ClientID:         sale.ClientID,
		Reason:           req.Reason,
		IssueDate:        today,
		Lines:            lines,
		Totals:           totals,
		CreditedAdvance:  creditAdvance && totals.Total.IsPositive(),
		ValidationStatus: documents.ValidationPending,
		CreatedAt:        today,
	}

	for itemID, q := range quantities {
		sale.Returned[itemID] += q
	}
	switch {
	case req.isVoid() || sale.FullyReturned():
		sale.Status = documents.StatusVoided
	default:
		sale.Status = documents.StatusPartiallyReturned
	}
	sale.UpdatedAt = today

	var controlled []string
	for _, l := range lines {
		if l.Controlled {
			controlled = append(controlled, l.ItemID)
		}
	}
	reservation := s.stock.Reserve(sale.WarehouseID, controlled)
	defer reservation.Release()

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		alloc, err := s.numbering.Allocate(ctx, res.ID)
		if err != nil {
			return err
		}
		ret.ID = alloc.Number
		stampPostings(postings, alloc.Number)

		if err := s.returns.Create(ctx, ret); err != nil {
			return fmt.Errorf("create return %s: %w", ret.ID, err)
		}
		for _, l := range lines {
			if !l.Controlled {
				continue
			}
			if _, err := reservation.Apply(ctx, stock.ApplyInput{
				ItemID:       l.ItemID,
				LocationID:   sale.WarehouseID,
				Quantity:     l.Quantity,
				UnitCost:     l.UnitCost,
				Direction:    stock.Receipt,
				RecorderType: string(fiscal.KindReturn),
				RecorderID:   ret.ID,
			}); err != nil {
				return err
			}
		}
		if err := s.accounting.Record(ctx, postings...); err != nil {
			return err
		}
		if err := s.sales.UpdateReturns(ctx, sale); err != nil {
			return fmt.Errorf("update sale %s: %w", sale.ID, err)
		}
		if ret.CreditedAdvance {
			return s.clients.CreditAdvance(ctx, sale.ClientID, totals.Total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return issued",
		"document_id", ret.ID,
		"original_id", sale.ID,
		"reason", ret.Reason,
		"total", totals.Total.String(),
		"sale_status", sale.Status)

	if sale.Status == documents.StatusVoided && sale.ValidationStatus == documents.ValidationPending && s.dispatcher != nil {
		if err := s.dispatcher.Cancel(ctx, sale.ID); err != nil {
			logger.Warn(ctx, "cancel validation failed", "document_id", sale.ID, "error", err)
		}
	}
	s.scheduleValidation(ctx, fiscal.KindReturn, ret.ID, totals.Total, today)

	return &ReturnResult{Return: ret, Sale: sale, Postings: postings, Warnings: report.Warnings}, nil
}

// returnQuantities sums the requested quantity per item, in first-seen order,
// and checks every item against what remains returnable. All violations are
// reported together.
func returnQuantities(sale *documents.Sale, req ReturnRequest) ([]string, map[string]types.Quantity, error) {
	quantities := make(map[string]types.Quantity)
	var order []string

	if req.isVoid() && len(req.Lines) == 0 {
		for _, itemID := range sale.ItemIDs() {
			if rem := sale.Remaining(itemID); rem > 0 {
				order = append(order, itemID)
				quantities[itemID] = rem
			}
		}
		return order, quantities, nil
	}
	if len(req.Lines) == 0 {
		return nil, nil, apperror.NewValidation("return must have at least one line")
	}

	for i, l := range req.Lines {
		if !l.Quantity.IsPositive() {
			return nil, nil, apperror.NewValidation("quantity must be positive").
				WithDetail("line", i).
				WithDetail("item_id", l.ItemID)
		}
		if _, seen := quantities[l.ItemID]; !seen {
			order = append(order, l.ItemID)
		}
		quantities[l.ItemID] = types.SumQuantities(quantities[l.ItemID], l.Quantity)
	}

	var violations []lineViolation
	for _, itemID := range order {
		if rem := sale.Remaining(itemID); quantities[itemID] > rem {
			violations = append(violations, lineViolation{
				ItemID:    itemID,
				Requested: quantities[itemID],
				Remaining: rem,
			})
		}
	}
	if len(violations) > 0 {
		return nil, nil, apperror.NewInvalidReturnQuantity(sale.ID).WithDetail("lines", violations)
	}
	return order, quantities, nil
}
