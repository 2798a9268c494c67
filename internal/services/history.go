package services

import (
	"context"

	"auctionhouse/internal/domain"
)

type TransactionHistory struct {
	transactions TransactionRepository
}

func NewTransactionHistory(transactions TransactionRepository) *TransactionHistory {
	return &TransactionHistory{transactions: transactions}
}

// ForPlayer lists sales where the player was buyer or seller, newest first.
func (h *TransactionHistory) ForPlayer(ctx context.Context, playerID string, page, size int) ([]domain.Transaction, error) {
	limit, offset := pageBounds(page, size)
	return h.transactions.ListByPlayer(ctx, playerID, limit, offset)
}
