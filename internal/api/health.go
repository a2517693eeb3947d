package api

import (
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
)

// DecisionService is the gRPC health service name that tracks the decision
// core. The empty service name reports process liveness only.
const DecisionService = "aeb.DecisionCore"

// Ensure HealthBridge observes the pipeline.
var _ pipeline.Observer = (*HealthBridge)(nil)

// HealthBridge publishes the decision core's state over the standard gRPC
// health protocol. DecisionService reports NOT_SERVING while the latest
// evaluation ended in fail-safe, and SERVING otherwise.
type HealthBridge struct {
	server *health.Server

	mu       sync.Mutex
	failsafe bool
}

func NewHealthBridge() *HealthBridge {
	b := &HealthBridge{server: health.NewServer()}
	b.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	b.server.SetServingStatus(DecisionService, healthpb.HealthCheckResponse_SERVING)
	return b
}

// ObserveResult implements pipeline.Observer.
func (b *HealthBridge) ObserveResult(res *pipeline.Result) {
	failsafe := res.State == aeb.StateFailsafe

	b.mu.Lock()
	defer b.mu.Unlock()
	if failsafe == b.failsafe {
		return
	}
	b.failsafe = failsafe
	if failsafe {
		opsf("decision core entered fail-safe: %s", res.SensorFault)
		b.server.SetServingStatus(DecisionService, healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	diagf("decision core left fail-safe")
	b.server.SetServingStatus(DecisionService, healthpb.HealthCheckResponse_SERVING)
}

// Register adds the health service to s.
func (b *HealthBridge) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, b.server)
}

// Shutdown marks every service NOT_SERVING ahead of a graceful stop.
func (b *HealthBridge) Shutdown() {
	b.server.Shutdown()
}
