package handler

import (
	"net/http"

	"perp-core-sol/internal/perp"
	"perp-core-sol/internal/perp/types"
)

type amountReq struct {
	User   types.Pubkey `json:"user"`
	Amount uint64       `json:"amount"`
}

type balanceResp struct {
	NewBalance uint64 `json:"new_balance"`
}

func Deposit(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountReq
		if !decodeBody(w, r, &req) {
			return
		}

		newBalance, err := app.Engine().Deposit(req.User, req.Amount)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, balanceResp{NewBalance: newBalance})
	}
}

func Withdraw(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req amountReq
		if !decodeBody(w, r, &req) {
			return
		}

		newBalance, err := app.Engine().Withdraw(req.User, req.Amount)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, balanceResp{NewBalance: newBalance})
	}
}

func Balance(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := queryPubkey(r, "user")
		if err != nil {
			writeErr(w, err)
			return
		}

		balance, ok := app.Engine().Balance(user)
		if !ok {
			writeErr(w, types.ErrAccountNotFound)
			return
		}
		writeOK(w, map[string]uint64{"balance": balance})
	}
}
