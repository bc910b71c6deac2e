package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/openslots/internal/apperror"
	"github.com/Leganyst/openslots/internal/obs"
)

const errorDomain = "openslots"

func codeFor(kind apperror.Kind) codes.Code {
	switch kind {
	case apperror.KindValidation:
		return codes.InvalidArgument
	case apperror.KindNotFound:
		return codes.NotFound
	case apperror.KindConflict:
		return codes.FailedPrecondition
	case apperror.KindState:
		// повтор после обновления состояния безопасен
		return codes.Aborted
	default:
		return codes.Internal
	}
}

// toStatus переводит ошибку движка в gRPC-статус с ErrorInfo.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var ae *apperror.Error
	if !errors.As(err, &ae) {
		obs.Logger.Error("rpc failed", "op", op, "err", err)
		return status.Errorf(codes.Internal, "%s: internal error", op)
	}

	st := status.New(codeFor(ae.Kind), err.Error())
	info := &errdetails.ErrorInfo{
		Reason:   strings.ToUpper(string(ae.Kind)),
		Domain:   errorDomain,
		Metadata: map[string]string{},
	}
	if ae.NegotiationID != "" {
		info.Metadata["negotiationId"] = ae.NegotiationID
	}
	if ae.SlotID != "" {
		info.Metadata["slotId"] = ae.SlotID
	}
	if ae.PriceCents != 0 {
		info.Metadata["priceCents"] = strconv.FormatInt(ae.PriceCents, 10)
	}
	if ae.MinCents != 0 || ae.MaxCents != 0 {
		info.Metadata["minPriceCents"] = strconv.FormatInt(ae.MinCents, 10)
		info.Metadata["maxPriceCents"] = strconv.FormatInt(ae.MaxCents, 10)
	}
	if detailed, derr := st.WithDetails(info); derr == nil {
		st = detailed
	}
	return st.Err()
}
