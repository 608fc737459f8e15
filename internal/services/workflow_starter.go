package services

import (
	"context"

	"leadflow/pkg/queue"
)

// WorkflowArgs 启动资格审查工作流的参数
type WorkflowArgs struct {
	WorkflowID string
	TenantID   string
	LeadID     string
	Tier       string
	Score      int
	Email      string
	Company    string
}

// WorkflowStarter 外部工作流执行方；只负责启动，不观察进度
type WorkflowStarter interface {
	Start(ctx context.Context, definition string, args WorkflowArgs) error
}

// QueueWorkflowStarter 把启动请求放入 redis 队列，由执行方消费
type QueueWorkflowStarter struct {
	queue *queue.RedisQueue
}

func NewQueueWorkflowStarter(q *queue.RedisQueue) *QueueWorkflowStarter {
	return &QueueWorkflowStarter{queue: q}
}

func (s *QueueWorkflowStarter) Start(ctx context.Context, definition string, args WorkflowArgs) error {
	return s.queue.Enqueue(ctx, queue.Job{
		ID:         args.WorkflowID,
		Definition: definition,
		TenantID:   args.TenantID,
		LeadID:     args.LeadID,
		Source:     "admission",
		Args: map[string]interface{}{
			"tier":    args.Tier,
			"score":   args.Score,
			"email":   args.Email,
			"company": args.Company,
		},
	})
}
