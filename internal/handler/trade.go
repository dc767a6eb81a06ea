package handler

import (
	"net/http"

	"perp-core-sol/internal/perp"
	"perp-core-sol/internal/perp/engine"
	"perp-core-sol/internal/perp/market"
	"perp-core-sol/internal/perp/types"
)

type openReq struct {
	User          types.Pubkey `json:"user"`
	Market        types.Pubkey `json:"market"`
	IsLong        bool         `json:"is_long"`
	Collateral    uint64       `json:"collateral"`
	Leverage      uint64       `json:"leverage"`
	SlippageLimit uint64       `json:"slippage_limit"`
}

type closeReq struct {
	User          types.Pubkey `json:"user"`
	Market        types.Pubkey `json:"market"`
	SlippageLimit uint64       `json:"slippage_limit"`
}

type liquidateReq struct {
	Liquidator    types.Pubkey `json:"liquidator"`
	Market        types.Pubkey `json:"market"`
	Owner         types.Pubkey `json:"owner"`
	SlippageLimit uint64       `json:"slippage_limit"`
}

type positionResp struct {
	Owner            types.Pubkey `json:"owner"`
	Market           types.Pubkey `json:"market"`
	Side             string       `json:"side"`
	Collateral       uint64       `json:"collateral"`
	Leverage         uint64       `json:"leverage"`
	EntryPrice       uint64       `json:"entry_price"`
	LiquidationPrice uint64       `json:"liquidation_price"`
	TokenAmount      uint64       `json:"token_amount"`
	PositionSizeSol  uint64       `json:"position_size_sol"`
	BorrowedTokens   uint64       `json:"borrowed_tokens"`
	OpenedAt         int64        `json:"opened_at"`
}

func toPositionResp(p market.Position) positionResp {
	return positionResp{
		Owner:            p.Owner,
		Market:           p.Market,
		Side:             p.Side.String(),
		Collateral:       p.Collateral,
		Leverage:         p.Leverage,
		EntryPrice:       p.EntryPrice,
		LiquidationPrice: p.LiquidationPrice,
		TokenAmount:      p.TokenAmount,
		PositionSizeSol:  p.PositionSizeSol,
		BorrowedTokens:   p.BorrowedTokens,
		OpenedAt:         p.OpenedAt,
	}
}

func OpenPosition(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openReq
		if !decodeBody(w, r, &req) {
			return
		}

		pos, err := app.Engine().OpenPosition(r.Context(), engine.OpenParams{
			User:          req.User,
			Market:        req.Market,
			Side:          types.SideFromIsLong(req.IsLong),
			Collateral:    req.Collateral,
			Leverage:      req.Leverage,
			SlippageLimit: req.SlippageLimit,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, toPositionResp(*pos))
	}
}

func ClosePosition(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req closeReq
		if !decodeBody(w, r, &req) {
			return
		}

		payout, err := app.Engine().ClosePosition(r.Context(), req.User, req.Market, req.SlippageLimit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, map[string]uint64{"payout": payout})
	}
}

func Liquidate(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req liquidateReq
		if !decodeBody(w, r, &req) {
			return
		}

		err := app.Engine().Liquidate(r.Context(), req.Liquidator, req.Market, req.Owner, req.SlippageLimit)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, nil)
	}
}

func GetPosition(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mkt, err := queryPubkey(r, "market")
		if err != nil {
			writeErr(w, err)
			return
		}
		owner, err := queryPubkey(r, "owner")
		if err != nil {
			writeErr(w, err)
			return
		}

		pos, err := app.Engine().PositionOf(mkt, owner)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, toPositionResp(pos))
	}
}
