package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// jobTTL 作业状态哈希的保留时间
const jobTTL = 24 * time.Hour

// 作业状态
const (
	JobStatusQueued   = "queued"
	JobStatusRunning  = "running"
	JobStatusFinished = "finished"
	JobStatusFailed   = "failed"
)

// RedisQueue Redis队列实现，工作流执行方从列表右侧取出作业
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// Job 队列中的工作流启动消息
type Job struct {
	ID         string                 `json:"id"` // 即工作流记录ID
	Definition string                 `json:"definition"`
	TenantID   string                 `json:"tenant_id"`
	LeadID     string                 `json:"lead_id"`
	Args       map[string]interface{} `json:"args"`
	Created    int64                  `json:"created"`
	Source     string                 `json:"source"`
}

// NewRedisQueue 基于已有客户端创建队列
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "leadflow"
	}
	return &RedisQueue{client: client, prefix: prefix}
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue 作业入队并记录状态
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" || job.Definition == "" {
		return fmt.Errorf("作业缺少ID或工作流名称")
	}
	if job.Created == 0 {
		job.Created = time.Now().Unix()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化作业失败: %w", err)
	}

	jobKey := q.jobKey(job.ID)
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.queueKey(job.Definition), data)
	pipe.HSet(ctx, jobKey, map[string]interface{}{
		"id":         job.ID,
		"definition": job.Definition,
		"tenant_id":  job.TenantID,
		"lead_id":    job.LeadID,
		"status":     JobStatusQueued,
		"queued_at":  job.Created,
	})
	pipe.Expire(ctx, jobKey, jobTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("作业入队失败: %w", err)
	}
	return nil
}

// Dequeue 取出最早入队的作业；队列为空时返回 nil
func (q *RedisQueue) Dequeue(ctx context.Context, definition string) (*Job, error) {
	data, err := q.client.RPop(ctx, q.queueKey(definition)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("解析作业失败: %w", err)
	}
	return &job, nil
}

// SetJobStatus 更新作业状态
func (q *RedisQueue) SetJobStatus(ctx context.Context, id, status string) error {
	return q.client.HSet(ctx, q.jobKey(id), map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().Unix(),
	}).Err()
}

// JobStatus 获取作业状态
func (q *RedisQueue) JobStatus(ctx context.Context, id string) (map[string]string, error) {
	result, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("获取作业状态失败: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("作业不存在")
	}
	return result, nil
}

// Length 队列长度
func (q *RedisQueue) Length(ctx context.Context, definition string) (int64, error) {
	return q.client.LLen(ctx, q.queueKey(definition)).Result()
}

// Publish 发布消息到指定频道
func (q *RedisQueue) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := q.client.Publish(ctx, q.channelKey(channel), data).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}
	return nil
}

// Subscribe 订阅指定频道
func (q *RedisQueue) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return q.client.Subscribe(ctx, q.channelKey(channel))
}

func (q *RedisQueue) queueKey(definition string) string {
	return fmt.Sprintf("%s:queue:%s", q.prefix, definition)
}

func (q *RedisQueue) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", q.prefix, id)
}

func (q *RedisQueue) channelKey(channel string) string {
	return fmt.Sprintf("%s:channel:%s", q.prefix, channel)
}
