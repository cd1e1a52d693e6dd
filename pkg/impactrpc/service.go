package impactrpc

import (
	"context"

	"google.golang.org/grpc"
)

// ReportImpactMethod is the full gRPC method name of ReportImpact.
const ReportImpactMethod = "/bumpwatch.v1.ImpactService/ReportImpact"

// ImpactReport is the wear one detector observed on one bump since its
// previous report.
type ImpactReport struct {
	BumpID     string `json:"bump_id"`
	DetectorID string `json:"detector_id,omitempty"`

	// Vehicles is the number of vehicles that crossed the bump.
	Vehicles int64 `json:"vehicles"`

	// Damage is health already computed by the detector.
	Damage float64 `json:"damage,omitempty"`

	// SpeedsKmh are individual crossing speeds. The server turns each one
	// into damage with its configured speed limit.
	SpeedsKmh []float64 `json:"speeds_kmh,omitempty"`

	ObservedAtUnix int64 `json:"observed_at_unix,omitempty"`
}

// ImpactAck echoes the condition of the bump after the report was applied.
type ImpactAck struct {
	OK     bool   `json:"ok"`
	Health *int   `json:"health,omitempty"`
	Status string `json:"status"`
}

// ImpactServiceServer is implemented by the server's receiver.
type ImpactServiceServer interface {
	ReportImpact(context.Context, *ImpactReport) (*ImpactAck, error)
}

// RegisterImpactServiceServer attaches srv to s.
func RegisterImpactServiceServer(s grpc.ServiceRegistrar, srv ImpactServiceServer) {
	s.RegisterService(&ImpactServiceDesc, srv)
}

// ImpactServiceDesc describes the service for grpc.Server.
var ImpactServiceDesc = grpc.ServiceDesc{
	ServiceName: "bumpwatch.v1.ImpactService",
	HandlerType: (*ImpactServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReportImpact", Handler: reportImpactHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bumpwatch/v1/impact",
}

func reportImpactHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ImpactReport)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ImpactServiceServer).ReportImpact(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReportImpactMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ImpactServiceServer).ReportImpact(ctx, req.(*ImpactReport))
	}
	return interceptor(ctx, in, info, handler)
}

// ImpactServiceClient is the agent side of the service.
type ImpactServiceClient interface {
	ReportImpact(ctx context.Context, in *ImpactReport, opts ...grpc.CallOption) (*ImpactAck, error)
}

type impactServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewImpactServiceClient wraps cc.
func NewImpactServiceClient(cc grpc.ClientConnInterface) ImpactServiceClient {
	return &impactServiceClient{cc: cc}
}

func (c *impactServiceClient) ReportImpact(ctx context.Context, in *ImpactReport, opts ...grpc.CallOption) (*ImpactAck, error) {
	out := new(ImpactAck)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ReportImpactMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
