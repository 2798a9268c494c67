package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
	applog "auctionhouse/internal/log"
)

// EscrowLedger tracks bidder funds that were taken from a live balance and
// not yet paid to anyone.
type EscrowLedger struct {
	holds   EscrowRepository
	economy Economy
	mailbox *CollectionMailbox
	clock   clock.Clock
}

func NewEscrowLedger(holds EscrowRepository, economy Economy, mailbox *CollectionMailbox, clk clock.Clock) *EscrowLedger {
	return &EscrowLedger{holds: holds, economy: economy, mailbox: mailbox, clock: clk}
}

// Hold records funds the caller already withdrew from bidderID.
func (e *EscrowLedger) Hold(ctx context.Context, listingID, bidderID string, amount decimal.Decimal) error {
	return e.holds.Insert(ctx, domain.EscrowHold{
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: e.clock.Now(),
	})
}

// Refund deletes the hold and credits the bidder. A missing hold is a no-op
// and returns zero. Must not run inside a transaction.
func (e *EscrowLedger) Refund(ctx context.Context, listingID, bidderID string) (decimal.Decimal, error) {
	h, err := e.holds.Delete(ctx, listingID, bidderID)
	if err != nil {
		if errors.Is(err, domain.ErrHoldNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, domain.PersistenceFailure("refund", listingID, err)
	}
	if err := e.credit(ctx, h.BidderID, listingID, h.Amount, domain.ReasonRefund); err != nil {
		return decimal.Zero, err
	}
	return h.Amount, nil
}

// RefundAll refunds every hold of the listing and returns the holds it paid.
func (e *EscrowLedger) RefundAll(ctx context.Context, listingID string) ([]domain.EscrowHold, error) {
	holds, err := e.holds.ListByListing(ctx, listingID)
	if err != nil {
		return nil, domain.PersistenceFailure("refund all", listingID, err)
	}
	paid := make([]domain.EscrowHold, 0, len(holds))
	var errs []error
	for _, h := range holds {
		amount, err := e.Refund(ctx, listingID, h.BidderID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if amount.IsZero() {
			continue
		}
		h.Amount = amount
		paid = append(paid, h)
	}
	return paid, errors.Join(errs...)
}

// Consume deletes the hold without refunding it and returns the amount, which
// the caller now owns as a payment.
func (e *EscrowLedger) Consume(ctx context.Context, listingID, bidderID string) (decimal.Decimal, error) {
	h, err := e.holds.Delete(ctx, listingID, bidderID)
	if err != nil {
		return decimal.Zero, err
	}
	return h.Amount, nil
}

func (e *EscrowLedger) Outstanding(ctx context.Context, listingID string) ([]domain.EscrowHold, error) {
	return e.holds.ListByListing(ctx, listingID)
}

// credit pays amount to playerID. If the economy refuses the deposit the money
// goes to the player's mailbox instead; only when that fails too is the error
// returned, and the loss is logged for manual recovery.
func (e *EscrowLedger) credit(ctx context.Context, playerID, listingID string, amount decimal.Decimal, reason string) error {
	if amount.IsZero() {
		return nil
	}
	err := e.economy.Deposit(ctx, playerID, amount)
	if err == nil {
		return nil
	}
	applog.Warn(nil, "money.deposit_failed", err, map[string]any{
		"player_id": playerID, "listing_id": listingID, "amount": amount.String(), "reason": reason,
	})

	if _, merr := e.mailbox.EnqueueMoney(ctx, playerID, listingID, amount, reason); merr != nil {
		applog.Error(nil, "money.unrecoverable", merr, map[string]any{
			"player_id": playerID, "listing_id": listingID, "amount": amount.String(), "reason": reason,
		})
		return domain.PersistenceFailure(reason, listingID, errors.Join(err, merr))
	}
	return nil
}
