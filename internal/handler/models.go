package handler

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// 请求模型

// ContributeRequest 贡献请求，金额为18位精度十进制字符串
type ContributeRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// InitializeRoundsRequest 轮次初始化请求：每轮的时间窗口（unix秒）
type InitializeRoundsRequest struct {
	StartTimes []int64 `json:"start_times" binding:"required"`
	EndTimes   []int64 `json:"end_times" binding:"required"`
}

// RequestTGERequest 启用TGE的时间锁请求
type RequestTGERequest struct {
	EventTime int64 `json:"event_time" binding:"required"`
}

// RequestWithdrawRequest 提现时间锁请求
type RequestWithdrawRequest struct {
	Destination string `json:"destination" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

// WithdrawNonceRequest 指定 nonce 的提现请求操作
type WithdrawNonceRequest struct {
	Nonce int64 `json:"nonce"`
}

// DestinationRequest 指定目的地址的资金操作
type DestinationRequest struct {
	Destination string `json:"destination" binding:"required"`
}

// HourlyLimitRequest 调整小时限额请求
type HourlyLimitRequest struct {
	Limit string `json:"limit" binding:"required"`
}

// 响应模型

// ContributeResponse 贡献成功响应
type ContributeResponse struct {
	Base        string `json:"base"`
	Bonus       string `json:"bonus"`
	Total       string `json:"total"`
	EventUnlock string `json:"event_unlock"`
	Vested      string `json:"vested"`
}

// ClaimResponse 领取成功响应
type ClaimResponse struct {
	Amount string `json:"amount"`
}

// ClaimableResponse 可领取额查询响应
type ClaimableResponse struct {
	Claimable string `json:"claimable"`
}

// RefundResponse 退款成功响应
type RefundResponse struct {
	Amount string `json:"amount"`
}

// RefundsEnabledResponse 退款窗口开启响应
type RefundsEnabledResponse struct {
	Deadline int64 `json:"deadline"`
}

// SweepResponse 托管余额扫回响应
type SweepResponse struct {
	Amount string `json:"amount"`
}

// RoundIndexResponse 轮次操作响应
type RoundIndexResponse struct {
	RoundIndex int `json:"round_index"`
}

// WithdrawRequestedResponse 提现请求已受理响应
type WithdrawRequestedResponse struct {
	Nonce int64 `json:"nonce"`
}
