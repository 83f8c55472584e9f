package payment

import (
	"context"
	"log/slog"

	"github.com/fairwayhq/fairway-backend/internal/modules/lifecycle"
)

// mpesaResultCodes maps Daraja ResultCode values. Anything missing here is a
// failure, logged so new codes get noticed.
var mpesaResultCodes = map[string]lifecycle.Status{
	"0":    lifecycle.Completed,
	"1":    lifecycle.Failed, // insufficient balance
	"1001": lifecycle.Failed, // subscriber busy
	"1019": lifecycle.Failed, // transaction expired
	"1025": lifecycle.Failed, // push could not be sent
	"1032": lifecycle.Failed, // cancelled by user
	"1037": lifecycle.Failed, // handset unreachable
	"2001": lifecycle.Failed, // wrong PIN
	"9999": lifecycle.Failed,
}

// checkoutStatusCodes maps hosted-checkout request_status_code values.
var checkoutStatusCodes = map[string]lifecycle.Status{
	"129": lifecycle.Expired,
	"177": lifecycle.Partial,
	"178": lifecycle.Completed,
	"179": lifecycle.Refunded,
	"180": lifecycle.Rejected,
	"183": lifecycle.Accepted,
	"188": lifecycle.Received,
}

func mapCode(ctx context.Context, logger *slog.Logger, table map[string]lifecycle.Status, kind, code string) lifecycle.Status {
	if st, ok := table[code]; ok {
		return st
	}
	logger.WarnContext(ctx, "unmapped gateway result code, treating as failed", "table", kind, "code", code)
	return lifecycle.Failed
}

func mpesaStatus(ctx context.Context, logger *slog.Logger, code string) lifecycle.Status {
	return mapCode(ctx, logger, mpesaResultCodes, "mpesa", code)
}

func checkoutStatus(ctx context.Context, logger *slog.Logger, code string) lifecycle.Status {
	return mapCode(ctx, logger, checkoutStatusCodes, "checkout", code)
}
