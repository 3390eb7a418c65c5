package health

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"advisor-core/internal/coordinator"
	"advisor-core/internal/events"
)

func TestInitialStatusFollowsBreakers(t *testing.T) {
	s := New([]coordinator.ProviderStatus{
		{Name: coordinator.ProviderNews, Enabled: true},
		{Name: coordinator.ProviderMarket, Enabled: false},
	}, nil)
	ctx := context.Background()

	if st, _ := s.Check(ctx, ""); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall status %v", st)
	}
	if st, _ := s.Check(ctx, coordinator.ProviderNews); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("news status %v", st)
	}
	if st, _ := s.Check(ctx, coordinator.ProviderMarket); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("market status %v", st)
	}
	if _, err := s.Check(ctx, "unknown"); err == nil {
		t.Errorf("expected NotFound for unregistered service")
	}
}

func TestTripEventMarksProviderNotServing(t *testing.T) {
	bus := events.NewBus()
	s := New([]coordinator.ProviderStatus{{Name: coordinator.ProviderNews, Enabled: true}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Watch(ctx, bus)

	bus.Publish(events.EventProviderTripped, events.ProviderTripped{Provider: coordinator.ProviderNews, Reason: "dial tcp: refused"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := s.Check(ctx, coordinator.ProviderNews); st == healthpb.HealthCheckResponse_NOT_SERVING {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("news should be NOT_SERVING after trip")
}

func TestServeOverGRPC(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := New([]coordinator.ProviderStatus{{Name: coordinator.ProviderMarket, Enabled: true}}, nil)
	go s.Serve(lis)
	defer s.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: coordinator.ProviderMarket})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("unexpected status %v", res.GetStatus())
	}
}
