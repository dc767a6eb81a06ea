package handler

import (
	"net/http"

	"perp-core-sol/internal/perp"
)

// MarketStats 带 token_mint 参数返回单个市场，否则返回全部
func MarketStats(app *perp.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_mint") == "" {
			writeOK(w, app.Engine().AllMarketStats())
			return
		}

		mint, err := queryPubkey(r, "token_mint")
		if err != nil {
			writeErr(w, err)
			return
		}
		stats, err := app.Engine().MarketStats(mint)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeOK(w, stats)
	}
}
