package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow/pkg/metrics"
	"leadflow/pkg/queue"

	"github.com/go-resty/resty/v2"
)

// NotificationKind 通知类型
type NotificationKind string

const (
	NotifyDraftApproved NotificationKind = "draft_approved" // 审批通过的邮件草稿，交给邮件中继发送
	NotifySalesAlert    NotificationKind = "sales_alert"    // 演示测评高匹配线索
	NotifyLeadCreated   NotificationKind = "lead.created"
	NotifyLeadApproved  NotificationKind = "lead.approved"
	NotifyLeadRejected  NotificationKind = "lead.rejected"
)

// Notification 已组装好的消息
type Notification struct {
	Kind      NotificationKind       `json:"type"`
	TenantID  string                 `json:"tenant_id"`
	LeadID    string                 `json:"lead_id,omitempty"`
	Recipient string                 `json:"recipient,omitempty"`
	Subject   string                 `json:"subject,omitempty"`
	Body      string                 `json:"body,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	SentAt    time.Time              `json:"sent_at"`
}

// Notifier 通知投递方
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier 丢弃所有通知
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }

// WebhookNotifier 以 JSON POST 投递到 webhook
type WebhookNotifier struct {
	name    string
	url     string
	client  *resty.Client
	format  func(Notification) interface{}
	metrics *metrics.Metrics
}

// NewWebhookNotifier 通用 webhook，消息体即 Notification
func NewWebhookNotifier(name, url string, timeout time.Duration, m *metrics.Metrics) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &WebhookNotifier{
		name:    name,
		url:     url,
		client:  client,
		format:  func(n Notification) interface{} { return n },
		metrics: m,
	}
}

// NewSlackNotifier Slack incoming webhook，只需要 text 字段
func NewSlackNotifier(url string, timeout time.Duration, m *metrics.Metrics) *WebhookNotifier {
	n := NewWebhookNotifier("slack", url, timeout, m)
	n.format = slackPayload
	return n
}

func slackPayload(n Notification) interface{} {
	text := n.Subject
	if n.Body != "" {
		text = fmt.Sprintf("*%s*\n%s", n.Subject, n.Body)
	}
	return map[string]string{"text": text}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(w.format(n)).
		Post(w.url)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("status %d", resp.StatusCode())
	}
	w.metrics.Notification(w.name, err)
	if err != nil {
		return fmt.Errorf("%s webhook: %w", w.name, err)
	}
	return nil
}

// EventPublisher 把通知发布到租户事件频道，websocket 订阅后推给前端
type EventPublisher struct {
	queue *queue.RedisQueue
}

func NewEventPublisher(q *queue.RedisQueue) *EventPublisher {
	return &EventPublisher{queue: q}
}

// EventChannel 租户的事件频道名
func EventChannel(tenantID string) string {
	return "events:" + tenantID
}

func (p *EventPublisher) Notify(ctx context.Context, n Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	return p.queue.Publish(ctx, EventChannel(n.TenantID), n)
}

// filteredNotifier 只投递指定类型
type filteredNotifier struct {
	next  Notifier
	kinds map[NotificationKind]struct{}
}

// OnlyKinds 包装通知方，只转发给定类型
func OnlyKinds(next Notifier, kinds ...NotificationKind) Notifier {
	set := make(map[NotificationKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return &filteredNotifier{next: next, kinds: set}
}

func (f *filteredNotifier) Notify(ctx context.Context, n Notification) error {
	if _, ok := f.kinds[n.Kind]; !ok {
		return nil
	}
	return f.next.Notify(ctx, n)
}

// CompositeNotifier 依次投递给所有通知方，汇总错误
type CompositeNotifier []Notifier

func (c CompositeNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range c {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
