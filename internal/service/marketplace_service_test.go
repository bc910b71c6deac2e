package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	marketplacepb "github.com/Leganyst/openslots/internal/api/marketplace/v1"
	"github.com/Leganyst/openslots/internal/catalog"
	"github.com/Leganyst/openslots/internal/config"
	"github.com/Leganyst/openslots/internal/db"
	"github.com/Leganyst/openslots/internal/discovery"
	"github.com/Leganyst/openslots/internal/events"
	"github.com/Leganyst/openslots/internal/model"
	"github.com/Leganyst/openslots/internal/negotiation"
	"github.com/Leganyst/openslots/internal/obs"
	"github.com/Leganyst/openslots/internal/repository"
)

var (
	providerID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	slotID     = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	otherSlot  = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

type fixture struct {
	client *marketplacepb.MarketplaceClient
	engine *negotiation.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.NewGormDB(&config.DBConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	start := time.Now().UTC().Add(4 * time.Hour).Truncate(time.Second)
	snap := catalog.Snapshot{Providers: []catalog.Provider{{
		ID: providerID.String(), Name: "Loop Spa", Rating: 4.5, City: "Chicago",
		Services: []catalog.Service{{
			Category: catalog.CategoryMassage, Name: "Deep Tissue", DurationMin: 60,
			Slots: []catalog.Slot{
				{ID: slotID.String(), StartTime: start, EndTime: start.Add(time.Hour), BasePriceCents: 10000, MaxDiscountFraction: 0.3},
				{ID: otherSlot.String(), StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour), BasePriceCents: 12000, MaxDiscountFraction: 0.1},
			},
		}},
	}}}
	catalogRepo := repository.NewGormCatalogRepository(gdb)
	if err := catalogRepo.Import(context.Background(), snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	store := repository.NewGormStore(gdb)
	dispatcher := events.NewDispatcher("test", obs.Logger, repository.NewAuditSink(repository.NewGormEventRepository(gdb)))
	engine := negotiation.NewEngine(store, dispatcher)
	svc := NewMarketplaceService(
		discovery.NewEngine(catalogRepo),
		engine,
		store,
		repository.NewGormProviderRepository(gdb),
	)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	marketplacepb.RegisterMarketplaceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &fixture{client: marketplacepb.NewMarketplaceClient(conn), engine: engine}
}

func (f *fixture) call(t *testing.T, method string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.client.Call(ctx, method, in)
}

func (f *fixture) mustCall(t *testing.T, method string, req map[string]any) map[string]any {
	t.Helper()
	out, err := f.call(t, method, req)
	if err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return out.AsMap()
}

func wantCode(t *testing.T, err error, code codes.Code) *status.Status {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok || st.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
	return st
}

func TestMarketplace_SearchWithBid(t *testing.T) {
	f := newFixture(t)

	out := f.mustCall(t, marketplacepb.MethodSearch, map[string]any{
		"serviceCategory": "massage",
		"city":            "chicago",
		"bidCents":        8000,
	})
	providers := out["providers"].([]any)
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	p := providers[0].(map[string]any)
	if p["lowestPriceCents"].(float64) != 7000 {
		t.Fatalf("lowestPriceCents = %v, want 7000", p["lowestPriceCents"])
	}
	slots := p["slots"].([]any)
	first := slots[0].(map[string]any)
	if first["slotId"] != slotID.String() || first["likelihood"] != "High" {
		t.Fatalf("unexpected first slot %+v", first)
	}
	best := out["bestOffer"].(map[string]any)
	if best["slotId"] != slotID.String() {
		t.Fatalf("bestOffer = %+v", best)
	}

	// without a bid neither likelihood nor best offer appear
	out = f.mustCall(t, marketplacepb.MethodSearch, map[string]any{"serviceCategory": "MASSAGE", "city": "Chicago"})
	if _, ok := out["bestOffer"]; ok {
		t.Fatalf("bestOffer without a bid")
	}
}

func TestMarketplace_SearchValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.call(t, marketplacepb.MethodSearch, map[string]any{"serviceCategory": "MASSAGE"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = f.call(t, marketplacepb.MethodSearch, map[string]any{"serviceCategory": "yoga", "city": "Chicago"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = f.call(t, marketplacepb.MethodSearch, map[string]any{"serviceCategory": "MASSAGE", "city": "Chicago", "bidCents": 10.5})
	wantCode(t, err, codes.InvalidArgument)
}

func TestMarketplace_NegotiateAndBook(t *testing.T) {
	f := newFixture(t)

	n := f.mustCall(t, marketplacepb.MethodCreateNegotiation, map[string]any{
		"buyerId": "buyer-1", "slotId": slotID.String(), "priceCents": 6500,
	})
	id := n["id"].(string)
	if n["status"] != "ACTIVE" {
		t.Fatalf("status = %v", n["status"])
	}
	rival := f.mustCall(t, marketplacepb.MethodCreateNegotiation, map[string]any{
		"buyerId": "buyer-2", "slotId": slotID.String(), "priceCents": 6000,
	})

	// provider counter below the floor
	_, err := f.call(t, marketplacepb.MethodCounter, map[string]any{"negotiationId": id, "by": "provider", "priceCents": 6900})
	st := wantCode(t, err, codes.FailedPrecondition)
	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	if info == nil || info.GetReason() != "CONFLICT" || info.GetMetadata()["minPriceCents"] != "7000" {
		t.Fatalf("missing error details: %+v", st.Details())
	}

	n = f.mustCall(t, marketplacepb.MethodCounter, map[string]any{"negotiationId": id, "by": "PROVIDER", "priceCents": 7500})
	if n["expiresAt"] == nil {
		t.Fatalf("provider counter must start the timer")
	}

	// the provider cannot accept its own counter
	_, err = f.call(t, marketplacepb.MethodAccept, map[string]any{"negotiationId": id, "by": "PROVIDER"})
	wantCode(t, err, codes.FailedPrecondition)

	b := f.mustCall(t, marketplacepb.MethodAccept, map[string]any{"negotiationId": id, "by": "BUYER"})
	if b["priceCents"].(float64) != 7500 || b["status"] != "CONFIRMED" {
		t.Fatalf("unexpected booking %+v", b)
	}

	got := f.mustCall(t, marketplacepb.MethodGetNegotiation, map[string]any{"negotiationId": rival["id"]})
	if got["status"] != "CANCELLED" {
		t.Fatalf("sibling status = %v, want CANCELLED", got["status"])
	}

	// action on a terminal negotiation
	_, err = f.call(t, marketplacepb.MethodCounter, map[string]any{"negotiationId": id, "by": "BUYER", "priceCents": 7000})
	wantCode(t, err, codes.Aborted)

	hist := f.mustCall(t, marketplacepb.MethodGetHistory, map[string]any{"negotiationId": id})
	evs := hist["events"].([]any)
	seen := map[string]bool{}
	for _, e := range evs {
		seen[e.(map[string]any)["type"].(string)] = true
	}
	for _, want := range []string{"negotiation.created", "negotiation.countered", "negotiation.accepted", "booking.created"} {
		if !seen[want] {
			t.Fatalf("history missing %s: %v", want, seen)
		}
	}
	if len(evs) != 4 {
		t.Fatalf("history has %d events, want 4", len(evs))
	}

	list := f.mustCall(t, marketplacepb.MethodListBookings, map[string]any{"buyerId": "buyer-1"})
	if list["totalCount"].(float64) != 1 {
		t.Fatalf("totalCount = %v", list["totalCount"])
	}

	cancelled := f.mustCall(t, marketplacepb.MethodCancelBooking, map[string]any{"bookingId": b["id"]})
	if cancelled["status"] != "CANCELLED" || cancelled["cancelledAt"] == nil {
		t.Fatalf("booking not cancelled: %+v", cancelled)
	}
}

func TestMarketplace_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.call(t, marketplacepb.MethodGetNegotiation, map[string]any{"negotiationId": uuid.NewString()})
	wantCode(t, err, codes.NotFound)

	_, err = f.call(t, marketplacepb.MethodCreateNegotiation, map[string]any{"buyerId": "b", "slotId": slotID.String()})
	wantCode(t, err, codes.InvalidArgument)

	_, err = f.call(t, marketplacepb.MethodCounter, map[string]any{"negotiationId": "x", "by": "nobody", "priceCents": 1})
	wantCode(t, err, codes.InvalidArgument)

	f.mustCall(t, marketplacepb.MethodCreateNegotiation, map[string]any{"buyerId": "b", "slotId": slotID.String(), "priceCents": 7000})
	_, err = f.call(t, marketplacepb.MethodCreateNegotiation, map[string]any{"buyerId": "b", "slotId": otherSlot.String(), "priceCents": 7000})
	wantCode(t, err, codes.FailedPrecondition)

	_, err = f.call(t, marketplacepb.MethodCancelBooking, map[string]any{"bookingId": uuid.NewString()})
	wantCode(t, err, codes.NotFound)
}

func TestMarketplace_WithdrawAndDeactivate(t *testing.T) {
	f := newFixture(t)

	a := f.mustCall(t, marketplacepb.MethodCreateNegotiation, map[string]any{"buyerId": "a", "slotId": slotID.String(), "priceCents": 7000})
	f.mustCall(t, marketplacepb.MethodCreateNegotiation, map[string]any{"buyerId": "b", "slotId": otherSlot.String(), "priceCents": 9000})

	out := f.mustCall(t, marketplacepb.MethodWithdrawSlot, map[string]any{"slotId": slotID.String()})
	if got := out["cancelled"].([]any); len(got) != 1 || got[0].(map[string]any)["id"] != a["id"] {
		t.Fatalf("withdraw cancelled %+v", got)
	}
	if _, ok := f.engine.ActiveForBuyer("a"); ok {
		t.Fatalf("buyer a still holds an active negotiation")
	}
	// снятый слот новых ставок не принимает
	_, err := f.call(t, marketplacepb.MethodCreateNegotiation, map[string]any{"buyerId": "a", "slotId": slotID.String(), "priceCents": 7000})
	wantCode(t, err, codes.FailedPrecondition)
	f.mustCall(t, marketplacepb.MethodWithdrawSlot, map[string]any{"slotId": slotID.String()})
	_, err = f.call(t, marketplacepb.MethodWithdrawSlot, map[string]any{"slotId": uuid.NewString()})
	wantCode(t, err, codes.NotFound)

	_, err = f.call(t, marketplacepb.MethodDeactivateProvider, map[string]any{"providerId": "not-a-uuid"})
	wantCode(t, err, codes.InvalidArgument)
	_, err = f.call(t, marketplacepb.MethodDeactivateProvider, map[string]any{"providerId": uuid.NewString()})
	wantCode(t, err, codes.NotFound)

	out = f.mustCall(t, marketplacepb.MethodDeactivateProvider, map[string]any{"providerId": providerID.String()})
	got := out["cancelled"].([]any)
	if len(got) != 1 || got[0].(map[string]any)["cancelReason"] != negotiation.ReasonProviderDeactivated {
		t.Fatalf("deactivate cancelled %+v", got)
	}
	_, err = f.call(t, marketplacepb.MethodCreateNegotiation, map[string]any{"buyerId": "c", "slotId": otherSlot.String(), "priceCents": 9000})
	wantCode(t, err, codes.FailedPrecondition)

	res := f.mustCall(t, marketplacepb.MethodSearch, map[string]any{"serviceCategory": "MASSAGE", "city": "Chicago"})
	if len(res["providers"].([]any)) != 0 {
		t.Fatalf("deactivated provider still listed")
	}
}
