// Package invoicing orchestrates the issuance of sales and returns across the
// numbering authority, the stock ledger, the calculator and the accounting
// generator.
//
// Every check that can fail runs before the first write. Writes are ordered
// number, document, stock, advance, postings and run inside one transaction
// when the storage supports it.
package invoicing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salesledger/internal/core/keylock"
	"salesledger/internal/core/tx"
	"salesledger/internal/domain/accounting"
	"salesledger/internal/domain/catalogs"
	"salesledger/internal/domain/documents"
	"salesledger/internal/domain/fiscal"
	"salesledger/internal/domain/numbering"
	"salesledger/internal/domain/registers/stock"
)

var tracer = otel.Tracer("salesledger/invoicing")

// Deps are the collaborators of Service.
type Deps struct {
	Numbering  *numbering.Service
	Stock      *stock.Service
	Accounting *accounting.Service

	Items          catalogs.Items
	Clients        catalogs.Clients
	PaymentMethods catalogs.PaymentMethods

	Sales   documents.SaleRepository
	Returns documents.ReturnRepository

	TxManager  tx.Manager
	Dispatcher fiscal.Dispatcher
}

// Service is the transaction orchestrator.
type Service struct {
	numbering  *numbering.Service
	stock      *stock.Service
	accounting *accounting.Service

	items    catalogs.Items
	clients  catalogs.Clients
	payments catalogs.PaymentMethods

	sales   documents.SaleRepository
	returns documents.ReturnRepository

	txm        tx.Manager
	dispatcher fiscal.Dispatcher

	locks    *keylock.Locker
	now      func() time.Time
	location *time.Location
}

var _ fiscal.Sink = (*Service)(nil)

// Option configures Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone that defines the business day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewService wires the orchestrator. A nil TxManager runs without
// transactions; a nil Dispatcher leaves documents pending validation.
func NewService(d Deps, opts ...Option) *Service {
	s := &Service{
		numbering:  d.Numbering,
		stock:      d.Stock,
		accounting: d.Accounting,
		items:      d.Items,
		clients:    d.Clients,
		payments:   d.PaymentMethods,
		sales:      d.Sales,
		returns:    d.Returns,
		txm:        d.TxManager,
		dispatcher: d.Dispatcher,
		locks:      keylock.New(),
		now:        time.Now,
		location:   time.UTC,
	}
	if s.txm == nil {
		s.txm = tx.Noop{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDispatcher replaces the validation dispatcher. The dispatcher usually
// needs the service as its sink, so it is attached after construction.
func (s *Service) SetDispatcher(d fiscal.Dispatcher) {
	s.dispatcher = d
}

func (s *Service) today() time.Time {
	return s.now().In(s.location)
}

func startSpan(ctx context.Context, name string, attrs ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, "invoicing."+name, attrs...)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
