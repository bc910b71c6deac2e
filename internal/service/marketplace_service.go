package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"gorm.io/gorm"

	marketplacepb "github.com/Leganyst/openslots/internal/api/marketplace/v1"
	"github.com/Leganyst/openslots/internal/calendar"
	"github.com/Leganyst/openslots/internal/catalog"
	"github.com/Leganyst/openslots/internal/discovery"
	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
)

type Searcher interface {
	Search(ctx context.Context, q discovery.Query) ([]discovery.ProviderResult, error)
}

type Negotiator interface {
	Create(ctx context.Context, req negotiation.CreateRequest) (negotiation.Negotiation, error)
	Counter(ctx context.Context, id string, by negotiation.Party, priceCents int64) (negotiation.Negotiation, error)
	Accept(ctx context.Context, id string, by negotiation.Party) (negotiation.Booking, error)
	Cancel(ctx context.Context, id, reason string) (negotiation.Negotiation, error)
	Get(ctx context.Context, id string) (negotiation.Negotiation, error)
	WithdrawSlot(ctx context.Context, slotID, reason string) ([]negotiation.Negotiation, error)
	CancelProvider(ctx context.Context, providerID, reason string) ([]negotiation.Negotiation, error)
	CancelBooking(ctx context.Context, bookingID string) (negotiation.Booking, error)
}

// Ledger — чтение бронирований и журнала событий.
type Ledger interface {
	ListBookings(ctx context.Context, buyerID string, limit, offset int) ([]negotiation.Booking, int64, error)
	History(ctx context.Context, negotiationID string) ([]model.Event, error)
}

type ProviderDeactivator interface {
	Deactivate(ctx context.Context, id string) error
}

type MarketplaceService struct {
	searcher   Searcher
	negotiator Negotiator
	ledger     Ledger
	providers  ProviderDeactivator
}

func NewMarketplaceService(
	searcher Searcher,
	negotiator Negotiator,
	ledger Ledger,
	providers ProviderDeactivator,
) *MarketplaceService {
	return &MarketplaceService{
		searcher:   searcher,
		negotiator: negotiator,
		ledger:     ledger,
		providers:  providers,
	}
}

var _ marketplacepb.MarketplaceServer = (*MarketplaceService)(nil)

func reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

func (s *MarketplaceService) Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	q, err := ParseSearchQuery(
		getString(req, "serviceCategory"),
		getString(req, "city"),
		firstNonEmpty(getString(req, "timeWindow"), getString(req, "window")),
		getString(req, "zipCode"),
	)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if ref := getString(req, "referenceTime"); ref != "" {
		t, err := time.Parse(time.RFC3339, ref)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "referenceTime must be RFC 3339")
		}
		q.Reference = t
	}

	bid, _, err := getInt(req, "bidCents")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	page, size, err := pageParams(req)
	if err != nil {
		return nil, err
	}

	results, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, toStatus("Search", err)
	}
	return reply(BuildSearchView(results, bid, page, size))
}

// ParseSearchQuery разбирает поля запроса поиска. Пустая категория
// пропускается дальше: её отклонит сам движок поиска.
func ParseSearchQuery(category, city, window, zip string) (discovery.Query, error) {
	q := discovery.Query{City: city, ZipCode: zip}
	if category != "" {
		c, err := catalog.ParseCategory(category)
		if err != nil {
			return q, err
		}
		q.Category = c
	}
	w, err := calendar.ParseWindow(window)
	if err != nil {
		return q, err
	}
	q.Window = w
	return q, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pageParams(req *structpb.Struct) (int, int, error) {
	page, _, err := getInt(req, "page")
	if err != nil {
		return 0, 0, status.Error(codes.InvalidArgument, err.Error())
	}
	size, _, err := getInt(req, "pageSize")
	if err != nil {
		return 0, 0, status.Error(codes.InvalidArgument, err.Error())
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = calendar.DefaultPageSize
	}
	return int(page), int(size), nil
}

func (s *MarketplaceService) CreateNegotiation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	price, ok, err := getInt(req, "priceCents")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "priceCents is required")
	}
	n, err := s.negotiator.Create(ctx, negotiation.CreateRequest{
		BuyerID:    getString(req, "buyerId"),
		SlotID:     getString(req, "slotId"),
		PriceCents: price,
	})
	if err != nil {
		return nil, toStatus("CreateNegotiation", err)
	}
	return reply(negotiationView(n))
}

func (s *MarketplaceService) Counter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	by, err := negotiation.ParseParty(getString(req, "by"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	price, ok, err := getInt(req, "priceCents")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "priceCents is required")
	}
	n, err := s.negotiator.Counter(ctx, getString(req, "negotiationId"), by, price)
	if err != nil {
		return nil, toStatus("Counter", err)
	}
	return reply(negotiationView(n))
}

func (s *MarketplaceService) Accept(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	by, err := negotiation.ParseParty(getString(req, "by"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	b, err := s.negotiator.Accept(ctx, getString(req, "negotiationId"), by)
	if err != nil {
		return nil, toStatus("Accept", err)
	}
	return reply(bookingView(b))
}

func (s *MarketplaceService) Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.negotiator.Cancel(ctx, getString(req, "negotiationId"), getString(req, "reason"))
	if err != nil {
		return nil, toStatus("Cancel", err)
	}
	return reply(negotiationView(n))
}

func (s *MarketplaceService) GetNegotiation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.negotiator.Get(ctx, getString(req, "negotiationId"))
	if err != nil {
		return nil, toStatus("GetNegotiation", err)
	}
	return reply(negotiationView(n))
}

func (s *MarketplaceService) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := getString(req, "negotiationId")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "negotiationId is required")
	}
	list, err := s.ledger.History(ctx, id)
	if err != nil {
		return nil, toStatus("GetHistory", err)
	}
	out := make([]EventView, 0, len(list))
	for _, m := range list {
		out = append(out, eventView(m))
	}
	return reply(struct {
		Events []EventView `json:"events"`
	}{out})
}

func (s *MarketplaceService) CancelBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b, err := s.negotiator.CancelBooking(ctx, getString(req, "bookingId"))
	if err != nil {
		return nil, toStatus("CancelBooking", err)
	}
	return reply(bookingView(b))
}

func (s *MarketplaceService) ListBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	buyerID := getString(req, "buyerId")
	if buyerID == "" {
		return nil, status.Error(codes.InvalidArgument, "buyerId is required")
	}
	page, size, err := pageParams(req)
	if err != nil {
		return nil, err
	}
	if size > calendar.MaxPageSize {
		size = calendar.MaxPageSize
	}

	list, total, err := s.ledger.ListBookings(ctx, buyerID, size, (page-1)*size)
	if err != nil {
		return nil, toStatus("ListBookings", err)
	}
	views := make([]BookingView, 0, len(list))
	for _, b := range list {
		views = append(views, bookingView(b))
	}
	return reply(struct {
		Bookings   []BookingView `json:"bookings"`
		TotalCount int64         `json:"totalCount"`
		Page       int           `json:"page"`
		PageSize   int           `json:"pageSize"`
	}{views, total, page, size})
}

type cancelledView struct {
	Cancelled []NegotiationView `json:"cancelled"`
}

// WithdrawSlot снимает слот с торгов: слот WITHDRAWN, все активные переговоры отменяются.
func (s *MarketplaceService) WithdrawSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.negotiator.WithdrawSlot(ctx, getString(req, "slotId"), getString(req, "reason"))
	if err != nil {
		return nil, toStatus("WithdrawSlot", err)
	}
	return reply(cancelledView{negotiationViews(list)})
}

func (s *MarketplaceService) DeactivateProvider(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := getString(req, "providerId")
	if _, err := uuid.Parse(id); err != nil {
		return nil, status.Error(codes.InvalidArgument, "providerId must be a UUID")
	}
	if err := s.providers.Deactivate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, status.Error(codes.NotFound, "provider not found")
		}
		return nil, toStatus("DeactivateProvider", err)
	}
	list, err := s.negotiator.CancelProvider(ctx, id, negotiation.ReasonProviderDeactivated)
	if err != nil {
		return nil, toStatus("DeactivateProvider", err)
	}
	return reply(cancelledView{negotiationViews(list)})
}
