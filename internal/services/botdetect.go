package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"leadflow/pkg/config"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// BotDetector 判断当前请求是否来自机器人
type BotDetector interface {
	IsBot(ctx context.Context, r *http.Request) (bool, error)
}

// TurnstileTokenHeader 前端把人机校验令牌放在这个请求头里
const TurnstileTokenHeader = "X-Turnstile-Token"

// HoneypotHeader 隐藏表单字段的值由前端转发到该请求头，真人不会填写
const HoneypotHeader = "X-Form-Trap"

// HeuristicDetector 基于请求特征的检测
type HeuristicDetector struct {
	blockedAgents []string
}

// NewHeuristicDetector 创建特征检测器
func NewHeuristicDetector(blockedAgents []string) *HeuristicDetector {
	lowered := make([]string, 0, len(blockedAgents))
	for _, a := range blockedAgents {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			lowered = append(lowered, a)
		}
	}
	return &HeuristicDetector{blockedAgents: lowered}
}

// IsBot 空 UA、命中黑名单或填写了陷阱字段即判为机器人
func (d *HeuristicDetector) IsBot(_ context.Context, r *http.Request) (bool, error) {
	ua := strings.ToLower(strings.TrimSpace(r.UserAgent()))
	if ua == "" {
		return true, nil
	}
	for _, blocked := range d.blockedAgents {
		if strings.Contains(ua, blocked) {
			return true, nil
		}
	}
	if r.Header.Get(HoneypotHeader) != "" {
		return true, nil
	}
	return false, nil
}

type turnstileReply struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// TurnstileVerifier 调用 Cloudflare Turnstile siteverify 校验令牌
type TurnstileVerifier struct {
	client *resty.Client
	secret string
	url    string
}

// NewTurnstileVerifier 创建校验器
func NewTurnstileVerifier(cfg config.BotConfig, timeout time.Duration) *TurnstileVerifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &TurnstileVerifier{client: client, secret: cfg.TurnstileSecret, url: cfg.VerifyURL}
}

// IsBot 缺少令牌或校验未通过即判为机器人；校验服务不可达时返回错误
func (v *TurnstileVerifier) IsBot(ctx context.Context, r *http.Request) (bool, error) {
	token := r.Header.Get(TurnstileTokenHeader)
	if token == "" {
		return true, nil
	}

	var reply turnstileReply
	resp, err := v.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"secret":   v.secret,
			"response": token,
			"remoteip": clientAddr(ctx, r),
		}).
		SetResult(&reply).
		Post(v.url)
	if err != nil {
		return false, fmt.Errorf("turnstile verify: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("turnstile verify: status %d", resp.StatusCode())
	}
	return !reply.Success, nil
}

type clientIPKey struct{}

// WithClientIP 把按可信代理解析出的客户端地址放进 ctx，外部校验服务以此为准
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// clientAddr 不读取 X-Forwarded-For；ctx 中没有解析结果时取连接对端地址
func clientAddr(ctx context.Context, r *http.Request) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ChainDetector 依次执行检测器，任一判定为机器人即返回；单个检测器出错时记录并继续
type ChainDetector struct {
	detectors []BotDetector
	log       *logrus.Logger
}

// NewChainDetector 组合检测器
func NewChainDetector(log *logrus.Logger, detectors ...BotDetector) *ChainDetector {
	return &ChainDetector{detectors: detectors, log: log}
}

func (c *ChainDetector) IsBot(ctx context.Context, r *http.Request) (bool, error) {
	for _, d := range c.detectors {
		bot, err := d.IsBot(ctx, r)
		if err != nil {
			c.log.WithError(err).Warn("Bot detector failed, skipping")
			continue
		}
		if bot {
			return true, nil
		}
	}
	return false, nil
}

// NewBotDetector 按配置组装：总是启用特征检测，配置了密钥时追加 Turnstile
func NewBotDetector(cfg config.BotConfig, timeout time.Duration, log *logrus.Logger) BotDetector {
	detectors := []BotDetector{NewHeuristicDetector(cfg.BlockedAgents)}
	if cfg.TurnstileSecret != "" {
		detectors = append(detectors, NewTurnstileVerifier(cfg, timeout))
	}
	return NewChainDetector(log, detectors...)
}
