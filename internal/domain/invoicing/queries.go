package invoicing

import (
	"context"
	"time"

	"salesledger/internal/core/apperror"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/documents"
	"salesledger/internal/domain/fiscal"
	"salesledger/internal/domain/registers/stock"
	"salesledger/pkg/logger"
)

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, saleID string) (*documents.Sale, error) {
	return s.sales.Get(ctx, saleID)
}

// ListSales returns sales matching filter in issue order.
func (s *Service) ListSales(ctx context.Context, filter documents.SaleFilter) ([]*documents.Sale, error) {
	return s.sales.List(ctx, filter)
}

// GetReturn returns one return.
func (s *Service) GetReturn(ctx context.Context, returnID string) (*documents.Return, error) {
	return s.returns.Get(ctx, returnID)
}

// ListReturns returns the returns issued against a sale.
func (s *Service) ListReturns(ctx context.Context, saleID string) ([]*documents.Return, error) {
	if _, err := s.sales.Get(ctx, saleID); err != nil {
		return nil, err
	}
	return s.returns.ListByOriginal(ctx, saleID)
}

// VoidCheck answers whether a sale can still be voided today.
type VoidCheck struct {
	DocumentID string    `json:"document_id"`
	CanVoid    bool      `json:"can_void"`
	IssueDate  time.Time `json:"issue_date"`
	Today      string    `json:"today"`
	Status     string    `json:"status"`
}

// CanVoid reports whether saleID may be voided on the current business day.
func (s *Service) CanVoid(ctx context.Context, saleID string) (VoidCheck, error) {
	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return VoidCheck{}, err
	}
	today := s.today()
	return VoidCheck{
		DocumentID: sale.ID,
		CanVoid:    documents.CanVoid(sale, today),
		IssueDate:  sale.IssueDate,
		Today:      today.Format(dateLayout),
		Status:     string(sale.Status),
	}, nil
}

// GetPostingsForDocument returns the postings of a sale or return.
func (s *Service) GetPostingsForDocument(ctx context.Context, documentID string) ([]*accounting.Posting, error) {
	return s.accounting.ForDocument(ctx, documentID)
}

// Balances returns the trial balance over every recorded posting.
func (s *Service) Balances(ctx context.Context) ([]accounting.AccountBalance, error) {
	return s.accounting.Balances(ctx)
}

// Quote prices lines from the catalog without issuing anything.
func (s *Service) Quote(ctx context.Context, reqs []LineRequest) (*documents.Quote, error) {
	if len(reqs) == 0 {
		return nil, apperror.NewValidation("quote must have at least one line")
	}
	lines, err := s.buildLines(ctx, reqs)
	if err != nil {
		return nil, err
	}
	totals := documents.PriceLines(lines)
	return &documents.Quote{Lines: lines, Totals: totals}, nil
}

// CheckStock reports every shortage the lines would cause at locationID.
// Controlled flags come from the catalog.
func (s *Service) CheckStock(ctx context.Context, locationID string, reqs []LineRequest) ([]stock.Shortage, error) {
	if locationID == "" {
		return nil, apperror.NewValidation("location_id is required")
	}
	out := make([]stock.Requirement, 0, len(reqs))
	for i, r := range reqs {
		item, err := s.items.GetItem(ctx, r.ItemID)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line", i)
			}
			return nil, err
		}
		out = append(out, stock.Requirement{ItemID: item.ID, Quantity: r.Quantity, Controlled: item.Controlled})
	}
	return s.stock.Validate(ctx, locationID, out)
}

// ApplyValidation records the outcome of an external validation. Only the
// validation status changes; numbering and stock are never touched. Results
// for documents that already have a final status are ignored.
func (s *Service) ApplyValidation(ctx context.Context, res fiscal.Result) error {
	status := documents.ValidationApproved
	if res.Outcome == fiscal.OutcomeRejected {
		status = documents.ValidationRejected
	}
	at := res.DecidedAt
	if at.IsZero() {
		at = s.today()
	}

	var (
		updated bool
		err     error
	)
	switch res.Kind {
	case fiscal.KindReturn:
		updated, err = s.returns.SetValidation(ctx, res.DocumentID, status, res.Reason, at)
	default:
		updated, err = s.sales.SetValidation(ctx, res.DocumentID, status, res.Reason, at)
	}
	if err != nil {
		return err
	}
	if !updated {
		logger.Debug(ctx, "validation result ignored", "document_id", res.DocumentID, "outcome", res.Outcome)
		return nil
	}
	if status == documents.ValidationRejected {
		logger.Warn(ctx, "document rejected by validation", "document_id", res.DocumentID, "reason", res.Reason)
	}
	return nil
}
