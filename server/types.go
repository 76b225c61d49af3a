package server

import "github.com/sig-0/p2prates/types"

type OffersResponse struct {
	Amount  *types.Quantity `json:"amount,omitempty"`
	Pair    types.Pair      `json:"pair"`
	Side    types.Side      `json:"side"`
	Results []types.Offer   `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
