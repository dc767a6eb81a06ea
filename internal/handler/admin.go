package handler

import (
	"net/http"

	"perp-core-sol/internal/perp"
	"perp-core-sol/internal/perp/engine"
	"perp-core-sol/internal/perp/types"
)

type createMarketReq struct {
	Admin           types.Pubkey `json:"admin"`
	TokenMint       types.Pubkey `json:"token_mint"`
	Pool            types.Pubkey `json:"pool"`
	BaseVault       types.Pubkey `json:"base_vault"`
	QuoteVault      types.Pubkey `json:"quote_vault"`
	MaxPositionSize uint64       `json:"max_position_size"`
}

func CreateMarket(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMarketReq
		if !decodeBody(w, r, &req) {
			return
		}

		err := app.Engine().CreateMarket(r.Context(), engine.CreateMarketParams{
			Admin:           req.Admin,
			TokenMint:       req.TokenMint,
			Pool:            req.Pool,
			BaseVault:       req.BaseVault,
			QuoteVault:      req.QuoteVault,
			MaxPositionSize: req.MaxPositionSize,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, nil)
	}
}
