package handler

type addRoleRequest struct {
	Address string `json:"address"`
}

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

type settleRequest struct {
	Amount uint64 `json:"amount"`
}

type depositResponse struct {
	VoucherAmount uint64 `json:"voucher_amount"`
}

type settleResponse struct {
	ReserveAmount uint64 `json:"reserve_amount"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
