package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"perp-core-sol/internal/perp/types"
	"perp-core-sol/internal/pkg/logger"
)

// 错误码与链上版本的 ErrorCode 对齐，REST 层只做翻译不做包装
var errTable = []struct {
	err    error
	code   int
	status int
}{
	{types.ErrUnauthorized, 1, http.StatusForbidden},
	{types.ErrInvalidLeverage, 2, http.StatusBadRequest},
	{types.ErrZeroAmount, 3, http.StatusBadRequest},
	{types.ErrZeroCollateral, 4, http.StatusBadRequest},
	{types.ErrPositionTooLarge, 5, http.StatusUnprocessableEntity},
	{types.ErrInvalidPool, 6, http.StatusUnprocessableEntity},
	{types.ErrPoolMintMismatch, 7, http.StatusUnprocessableEntity},
	{types.ErrInsufficientBalance, 8, http.StatusUnprocessableEntity},
	{types.ErrInsufficientShares, 9, http.StatusUnprocessableEntity},
	{types.ErrInsufficientLiquidity, 10, http.StatusUnprocessableEntity},
	{types.ErrMarketExists, 11, http.StatusConflict},
	{types.ErrMarketNotFound, 12, http.StatusNotFound},
	{types.ErrPositionExists, 13, http.StatusConflict},
	{types.ErrPositionNotFound, 14, http.StatusNotFound},
	{types.ErrAccountNotFound, 15, http.StatusNotFound},
	{types.ErrOverflow, 16, http.StatusUnprocessableEntity},
	{types.ErrSlippageExceeded, 17, http.StatusUnprocessableEntity},
	{types.ErrSwapFailed, 18, http.StatusServiceUnavailable},
	{types.ErrEmptyPool, 19, http.StatusServiceUnavailable},
	{types.ErrNotLiquidatable, 20, http.StatusConflict},
}

const codeBadRequest = 400

type errResp struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type okResp struct {
	Code int `json:"code"`
	Data any `json:"data,omitempty"`
}

func writeOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(okResp{Data: data})
}

func writeErr(w http.ResponseWriter, err error) {
	code, status := codeBadRequest, http.StatusBadRequest
	for _, entry := range errTable {
		if errors.Is(err, entry.err) {
			code, status = entry.code, entry.status
			break
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Errorf("[Handler] [%d] %v", code, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errResp{Code: code, Error: err.Error()})
}

// decodeBody 仅接受 POST + JSON body
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeErr(w, fmt.Errorf("method %s not allowed", r.Method))
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func queryPubkey(r *http.Request, key string) (types.Pubkey, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return types.Pubkey{}, fmt.Errorf("missing query param %q", key)
	}
	return types.TryPubkeyFromString(raw)
}
