package handler

import (
	"net/http"

	"perp-core-sol/internal/perp"
	"perp-core-sol/internal/perp/types"
)

type lendingDepositReq struct {
	User   types.Pubkey `json:"user"`
	Market types.Pubkey `json:"market"`
	Amount uint64       `json:"amount"`
}

type lendingWithdrawReq struct {
	User   types.Pubkey `json:"user"`
	Market types.Pubkey `json:"market"`
	Shares uint64       `json:"shares"`
}

func LendingDeposit(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lendingDepositReq
		if !decodeBody(w, r, &req) {
			return
		}

		shares, err := app.Engine().DepositToLending(req.User, req.Market, req.Amount)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, map[string]uint64{"shares": shares})
	}
}

func LendingWithdraw(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lendingWithdrawReq
		if !decodeBody(w, r, &req) {
			return
		}

		tokens, err := app.Engine().WithdrawFromLending(req.User, req.Market, req.Shares)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, map[string]uint64{"tokens": tokens})
	}
}
