package handlers

import (
	"auctionhouse/internal/config"
	"auctionhouse/internal/services"
)

type Deps struct {
	ListingHandler    *ListingHandler
	BidHandler        *BidHandler
	CollectionHandler *CollectionHandler
	HistoryHandler    *HistoryHandler
	AdminHandler      *AdminHandler

	AdminKeyHash string
}

func NewDeps(ah *services.AuctionHouse, cfg config.Config) *Deps {
	return &Deps{
		ListingHandler:    &ListingHandler{AH: ah, Increment: cfg.BidIncrementPct},
		BidHandler:        &BidHandler{AH: ah},
		CollectionHandler: &CollectionHandler{AH: ah},
		HistoryHandler:    &HistoryHandler{AH: ah},
		AdminHandler:      &AdminHandler{Sweeper: ah.Sweeper, Escrow: ah.Escrow, Mailbox: ah.Mailbox},
		AdminKeyHash:      cfg.AdminKeyHash,
	}
}
