package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/blues/pss/internal/config"
	"github.com/blues/pss/internal/logger"
	"github.com/panjf2000/ants/v2"
)

// Notifier 事件外发器：提交后在协程池内异步投递 webhook
// 投递失败只记日志不重试，事件本体已在同一事务内落库
type Notifier struct {
	webhookUrl string
	timeout    time.Duration
	pool       *ants.Pool
	client     *http.Client
}

// New 创建事件外发器
func New(cfg config.NotifyConfig) (*Notifier, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = 8
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &Notifier{
		webhookUrl: cfg.WebhookUrl,
		timeout:    timeout,
		pool:       pool,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Publish 异步投递事件，协程池满时丢弃并记日志
func (n *Notifier) Publish(eventType string, payload map[string]interface{}) {
	body := map[string]interface{}{
		"type":      eventType,
		"timestamp": time.Now().Unix(),
		"payload":   payload,
	}

	err := n.pool.Submit(func() {
		n.deliver(eventType, body)
	})
	if err != nil {
		logger.Warn("Notify pool full, dropped event %s: %v", eventType, err)
	}
}

// deliver 投递单个事件
func (n *Notifier) deliver(eventType string, body map[string]interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		logger.Error("Failed to marshal notify payload for %s: %v", eventType, err)
		return
	}

	if n.webhookUrl == "" {
		logger.Debug("Event %s: %s", eventType, string(data))
		return
	}

	resp, err := n.client.Post(n.webhookUrl, "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Error("Failed to deliver event %s to webhook: %v", eventType, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Error("Webhook returned status %d for event %s", resp.StatusCode, eventType)
		return
	}
	logger.Debug("Delivered event %s to webhook", eventType)
}

// Close 释放协程池
func (n *Notifier) Close() {
	n.pool.Release()
}
