package receiver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/pkg/impactrpc"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
	"github.com/bumpwatch/bumpwatch/server/internal/tracker"
)

// Impactor applies impacts. *tracker.Tracker implements it.
type Impactor interface {
	ApplyImpact(ctx context.Context, im tracker.Impact) (bump.Record, error)
}

// Receiver implements impactrpc.ImpactServiceServer.
// It turns each incoming ImpactReport into a tracker.Impact.
type Receiver struct {
	impactor Impactor
}

// New creates a Receiver that applies accepted reports through im.
func New(im Impactor) *Receiver {
	return &Receiver{impactor: im}
}

// ReportImpact is the unary RPC handler called by bumpwatch-agent instances.
// Authentication is enforced by the gRPC server interceptor before this is called.
func (r *Receiver) ReportImpact(ctx context.Context, rep *impactrpc.ImpactReport) (*impactrpc.ImpactAck, error) {
	if rep.BumpID == "" {
		return nil, status.Error(codes.InvalidArgument, "bump_id is required")
	}

	im := tracker.Impact{
		BumpID:    rep.BumpID,
		Vehicles:  rep.Vehicles,
		Damage:    rep.Damage,
		SpeedsKmh: rep.SpeedsKmh,
	}
	if rep.ObservedAtUnix > 0 {
		im.ObservedAt = time.Unix(rep.ObservedAtUnix, 0).UTC()
	}
	rec, err := r.impactor.ApplyImpact(ctx, im)
	if err != nil {
		return nil, toStatus(err)
	}

	slog.Debug("receiver: impact applied",
		"bump_id", rep.BumpID,
		"detector_id", rep.DetectorID,
		"vehicles", rep.Vehicles,
		"status", rec.Status(),
	)

	ack := &impactrpc.ImpactAck{OK: true, Status: string(rec.Status())}
	if h, ok := rec.Condition.Health(); ok {
		ack.Health = &h
	}
	return ack, nil
}

// toStatus maps tracker errors to gRPC codes.
func toStatus(err error) error {
	var ve *bump.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrNotConfigured), errors.Is(err, store.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
