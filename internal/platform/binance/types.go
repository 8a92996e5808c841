package binance

// depthResponse mirrors the Binance REST depth payload. Levels arrive as
// [price, quantity] string pairs.
type depthResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// errorResponse mirrors the Binance REST error payload.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}
