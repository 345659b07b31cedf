package handler

import (
	"net/http"

	"github.com/blues/pss/internal/presale"
	"github.com/gin-gonic/gin"
)

// AdminHandler 特权入口处理器
// 所有操作的角色校验在引擎内完成，处理器只做参数转换
type AdminHandler struct {
	engine *presale.Engine
}

// NewAdminHandler 创建特权处理器
func NewAdminHandler(engine *presale.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// InitializeRounds 初始化全部轮次
func (h *AdminHandler) InitializeRounds(c *gin.Context) {
	var req InitializeRoundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	if err := h.engine.InitializeRounds(caller(c), req.StartTimes, req.EndTimes); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "轮次初始化成功", nil)
}

// FinalizeRound 终结当前轮次
func (h *AdminHandler) FinalizeRound(c *gin.Context) {
	index, err := h.engine.FinalizeRound(caller(c))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "轮次已终结", RoundIndexResponse{RoundIndex: index})
}

// AdvanceRound 推进到下一轮次
func (h *AdminHandler) AdvanceRound(c *gin.Context) {
	index, err := h.engine.AdvanceRound(caller(c))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "已推进到下一轮次", RoundIndexResponse{RoundIndex: index})
}

// RequestEnableTGE 发起启用TGE请求
func (h *AdminHandler) RequestEnableTGE(c *gin.Context) {
	var req RequestTGERequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	if err := h.engine.RequestEnableTGE(caller(c), req.EventTime); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "启用TGE请求已受理", nil)
}

// ExecuteEnableTGE 执行启用TGE请求
func (h *AdminHandler) ExecuteEnableTGE(c *gin.Context) {
	if err := h.engine.ExecuteEnableTGE(caller(c)); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "TGE已启用", nil)
}

// CancelEnableTGE 取消启用TGE请求
func (h *AdminHandler) CancelEnableTGE(c *gin.Context) {
	if err := h.engine.CancelEnableTGE(caller(c)); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "启用TGE请求已取消", nil)
}

// EnableRefunds 开启退款窗口
func (h *AdminHandler) EnableRefunds(c *gin.Context) {
	deadline, err := h.engine.EnableRefunds(caller(c))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "退款窗口已开启", RefundsEnabledResponse{Deadline: deadline})
}

// RecoverUnclaimedRefunds 扫回未领取的退款资金
func (h *AdminHandler) RecoverUnclaimedRefunds(c *gin.Context) {
	var req DestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	amount, err := h.engine.RecoverUnclaimedRefunds(c.Request.Context(), caller(c), req.Destination)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "未领取退款已扫回", SweepResponse{Amount: amount.String()})
}

// RequestWithdraw 发起提现请求
func (h *AdminHandler) RequestWithdraw(c *gin.Context) {
	var req RequestWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	amount, err := presale.ParseAmount(req.Amount)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	nonce, err := h.engine.RequestWithdraw(caller(c), req.Destination, amount)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "提现请求已受理", WithdrawRequestedResponse{Nonce: nonce})
}

// ExecuteWithdraw 执行提现请求
func (h *AdminHandler) ExecuteWithdraw(c *gin.Context) {
	var req WithdrawNonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	if err := h.engine.ExecuteWithdraw(c.Request.Context(), caller(c), req.Nonce); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "提现已执行", nil)
}

// CancelWithdraw 取消提现请求
func (h *AdminHandler) CancelWithdraw(c *gin.Context) {
	var req WithdrawNonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	if err := h.engine.CancelWithdraw(caller(c), req.Nonce); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "提现请求已取消", nil)
}

// WithdrawExcessAllocation 提取托管账户中多余的分配资产
func (h *AdminHandler) WithdrawExcessAllocation(c *gin.Context) {
	var req DestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	amount, err := h.engine.WithdrawExcessAllocation(c.Request.Context(), caller(c), req.Destination)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "多余分配资产已提取", SweepResponse{Amount: amount.String()})
}

// RequestEmergencyWithdraw 发起紧急提取请求
func (h *AdminHandler) RequestEmergencyWithdraw(c *gin.Context) {
	if err := h.engine.RequestEmergencyWithdraw(caller(c)); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "紧急提取请求已受理", nil)
}

// ExecuteEmergencyWithdraw 执行紧急提取
func (h *AdminHandler) ExecuteEmergencyWithdraw(c *gin.Context) {
	var req DestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	amount, err := h.engine.ExecuteEmergencyWithdraw(c.Request.Context(), caller(c), req.Destination)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "紧急提取已执行", SweepResponse{Amount: amount.String()})
}

// CancelEmergencyWithdraw 取消紧急提取请求
func (h *AdminHandler) CancelEmergencyWithdraw(c *gin.Context) {
	if err := h.engine.CancelEmergencyWithdraw(caller(c)); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "紧急提取请求已取消", nil)
}

// UpdateHourlyLimit 调整小时贡献限额
func (h *AdminHandler) UpdateHourlyLimit(c *gin.Context) {
	var req HourlyLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	limit, err := presale.ParseAmount(req.Limit)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	if err := h.engine.UpdateHourlyLimit(caller(c), limit); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "小时限额已更新", nil)
}

// Pause 暂停
func (h *AdminHandler) Pause(c *gin.Context) {
	if err := h.engine.Pause(caller(c)); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "已暂停", nil)
}

// Unpause 恢复
func (h *AdminHandler) Unpause(c *gin.Context) {
	if err := h.engine.Unpause(caller(c)); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "已恢复", nil)
}
