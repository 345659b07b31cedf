package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/pss/internal/presale"
	"github.com/gin-gonic/gin"
)

// CallerHeader 调用方地址头：服务端身份层校验后注入
const CallerHeader = "X-Caller-Address"

// PresaleHandler 预售公开入口处理器
type PresaleHandler struct {
	engine *presale.Engine
}

// NewPresaleHandler 创建预售处理器
func NewPresaleHandler(engine *presale.Engine) *PresaleHandler {
	return &PresaleHandler{engine: engine}
}

// caller 从请求头取调用方地址
func caller(c *gin.Context) string {
	return c.GetHeader(CallerHeader)
}

// GetStats 获取全局统计
func (h *PresaleHandler) GetStats(c *gin.Context) {
	stats, err := h.engine.GetStats()
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取预售统计成功", stats)
}

// GetRounds 获取全部轮次
func (h *PresaleHandler) GetRounds(c *gin.Context) {
	rounds, err := h.engine.GetRounds()
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取轮次列表成功", rounds)
}

// GetCurrentRound 获取当前轮次
func (h *PresaleHandler) GetCurrentRound(c *gin.Context) {
	round, err := h.engine.GetCurrentRound()
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取当前轮次成功", round)
}

// GetContribution 获取地址的贡献视图
func (h *PresaleHandler) GetContribution(c *gin.Context) {
	addr := c.Param("address")
	if addr == "" {
		ErrorResponse(c, http.StatusBadRequest, "地址不能为空")
		return
	}
	view, err := h.engine.GetContribution(addr)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取贡献信息成功", view)
}

// GetClaimable 查询地址当前可领取额
func (h *PresaleHandler) GetClaimable(c *gin.Context) {
	addr := c.Param("address")
	if addr == "" {
		ErrorResponse(c, http.StatusBadRequest, "地址不能为空")
		return
	}
	claimable, err := h.engine.Claimable(addr)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取可领取额成功", ClaimableResponse{Claimable: claimable.String()})
}

// Contribute 贡献
func (h *PresaleHandler) Contribute(c *gin.Context) {
	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "请求参数错误: "+err.Error())
		return
	}
	amount, err := presale.ParseAmount(req.Amount)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}

	alloc, err := h.engine.Contribute(c.Request.Context(), caller(c), amount)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "贡献成功", ContributeResponse{
		Base:        alloc.Base.String(),
		Bonus:       alloc.Bonus.String(),
		Total:       alloc.Total.String(),
		EventUnlock: alloc.EventUnlock.String(),
		Vested:      alloc.Vested.String(),
	})
}

// Claim 领取已解锁分配
func (h *PresaleHandler) Claim(c *gin.Context) {
	amount, err := h.engine.Claim(c.Request.Context(), caller(c))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "领取成功", ClaimResponse{Amount: amount.String()})
}

// ClaimRefund 领取退款
func (h *PresaleHandler) ClaimRefund(c *gin.Context) {
	amount, err := h.engine.ClaimRefund(c.Request.Context(), caller(c))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "退款成功", RefundResponse{Amount: amount.String()})
}

// GetEvents 分页查询事件记录
func (h *PresaleHandler) GetEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	eventType := c.Query("type")

	events, total, err := h.engine.GetEvents(eventType, page, pageSize)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}

	pagination := Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	SuccessResponse(c, http.StatusOK, "获取事件记录成功", gin.H{
		"events":     events,
		"pagination": pagination,
	})
}
