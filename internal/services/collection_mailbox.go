package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/clock"
	"auctionhouse/internal/domain"
	applog "auctionhouse/internal/log"
)

// ErrNoItemDeliverer is returned when an ITEM entry is claimed but the host
// registered no way to hand items over.
var ErrNoItemDeliverer = errors.New("item delivery unavailable")

// CollectionMailbox is the per-player inbox for settled assets.
type CollectionMailbox struct {
	tx          TxRunner
	entries     CollectionRepository
	economy     Economy
	items       ItemDeliverer
	clock       clock.Clock
	newestFirst bool
}

func NewCollectionMailbox(tx TxRunner, entries CollectionRepository, economy Economy, items ItemDeliverer, clk clock.Clock, newestFirst bool) *CollectionMailbox {
	return &CollectionMailbox{tx: tx, entries: entries, economy: economy, items: items, clock: clk, newestFirst: newestFirst}
}

// EnqueueMoney stores money for ownerID. Runs in the caller's transaction when
// ctx carries one.
func (m *CollectionMailbox) EnqueueMoney(ctx context.Context, ownerID, listingID string, amount decimal.Decimal, reason string) (domain.CollectionEntry, error) {
	return m.enqueue(ctx, domain.CollectionEntry{
		OwnerID:   ownerID,
		Kind:      domain.CollectionMoney,
		Amount:    amount,
		Reason:    reason,
		ListingID: listingID,
	})
}

// EnqueueItem stores an item for ownerID.
func (m *CollectionMailbox) EnqueueItem(ctx context.Context, ownerID, listingID string, blob []byte, reason string) (domain.CollectionEntry, error) {
	return m.enqueue(ctx, domain.CollectionEntry{
		OwnerID:   ownerID,
		Kind:      domain.CollectionItem,
		ItemBlob:  blob,
		Amount:    decimal.Zero,
		Reason:    reason,
		ListingID: listingID,
	})
}

func (m *CollectionMailbox) enqueue(ctx context.Context, e domain.CollectionEntry) (domain.CollectionEntry, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = m.clock.Now()
	if err := m.entries.Insert(ctx, e); err != nil {
		return domain.CollectionEntry{}, err
	}
	return e, nil
}

func (m *CollectionMailbox) List(ctx context.Context, ownerID string) ([]domain.CollectionEntry, error) {
	return m.entries.ListByOwner(ctx, ownerID, m.newestFirst)
}

// Pending counts the unclaimed entries of a player.
func (m *CollectionMailbox) Pending(ctx context.Context, ownerID string) (int, error) {
	return m.entries.CountByOwner(ctx, ownerID)
}

// Claim removes the entry and delivers it to its owner in one transaction:
// a failed delivery rolls the delete back, and two concurrent claims pay out
// once. With the bundled Ledger the deposit commits with the delete. A host
// economy or item deliverer that succeeds just before a failed commit leaves
// the entry claimable again; that case is logged.
func (m *CollectionMailbox) Claim(ctx context.Context, ownerID, entryID string) (domain.CollectionEntry, error) {
	var (
		e         domain.CollectionEntry
		delivered bool
	)
	err := m.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if e, err = m.entries.Delete(ctx, entryID, ownerID); err != nil {
			return err
		}
		if err := m.deliver(ctx, e); err != nil {
			return fmt.Errorf("deliver entry %s: %w", e.ID, err)
		}
		delivered = true
		return nil
	})
	if err != nil {
		if delivered {
			applog.Error(nil, "collection.commit_failed", err, map[string]any{
				"entry_id": e.ID, "owner_id": e.OwnerID, "kind": e.Kind, "amount": e.Amount.String(),
			})
		}
		return domain.CollectionEntry{}, err
	}

	applog.Audit(nil, "collection.claimed", map[string]any{
		"entry_id": e.ID, "owner_id": e.OwnerID, "kind": e.Kind, "amount": e.Amount.String(), "reason": e.Reason,
	})
	return e, nil
}

// ForListing returns the unclaimed entries a listing produced.
func (m *CollectionMailbox) ForListing(ctx context.Context, listingID string) ([]domain.CollectionEntry, error) {
	return m.entries.ListByListing(ctx, listingID)
}

// ClaimAll claims every entry of ownerID. Entries that fail stay in the
// mailbox; their errors are joined.
func (m *CollectionMailbox) ClaimAll(ctx context.Context, ownerID string) ([]domain.CollectionEntry, error) {
	entries, err := m.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	claimed := make([]domain.CollectionEntry, 0, len(entries))
	var errs []error
	for _, e := range entries {
		c, err := m.Claim(ctx, ownerID, e.ID)
		if err != nil {
			if errors.Is(err, domain.ErrEntryNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		claimed = append(claimed, c)
	}
	return claimed, errors.Join(errs...)
}

func (m *CollectionMailbox) deliver(ctx context.Context, e domain.CollectionEntry) error {
	switch e.Kind {
	case domain.CollectionMoney:
		return m.economy.Deposit(ctx, e.OwnerID, e.Amount)
	case domain.CollectionItem:
		if m.items == nil {
			return ErrNoItemDeliverer
		}
		return m.items.GiveItem(ctx, e.OwnerID, e.ItemBlob)
	default:
		return fmt.Errorf("unknown collection kind %q", e.Kind)
	}
}
