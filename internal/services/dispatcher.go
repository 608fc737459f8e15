package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadflow/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// ErrDispatcherBusy 队列已满，任务被丢弃
var ErrDispatcherBusy = errors.New("dispatcher queue is full")

// ErrDispatcherClosed 已关闭后提交的任务
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// ErrorSink 接收异步任务的失败；只记录，不回传给调用方
type ErrorSink func(task string, err error)

// LogSink 把失败写入日志
func LogSink(log *logrus.Logger) ErrorSink {
	return func(task string, err error) {
		log.WithError(err).WithField("task", task).Warn("Async task failed")
	}
}

type asyncTask struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatcher 固定数量的 worker 执行提交后即返回的任务
type Dispatcher struct {
	tasks   chan asyncTask
	sink    ErrorSink
	metrics *metrics.Metrics
	timeout time.Duration

	pending sync.WaitGroup
	workers sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewDispatcher 创建并启动 worker
func NewDispatcher(workers, queueSize int, timeout time.Duration, sink ErrorSink, m *metrics.Metrics) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if sink == nil {
		sink = func(string, error) {}
	}
	d := &Dispatcher{
		tasks:   make(chan asyncTask, queueSize),
		sink:    sink,
		metrics: m,
		timeout: timeout,
	}
	d.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Submit 提交任务，不阻塞调用方；队列满或已关闭时任务交给 sink 并返回 false
func (d *Dispatcher) Submit(name string, run func(ctx context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.fail(name, ErrDispatcherClosed)
		return false
	}

	d.pending.Add(1)
	select {
	case d.tasks <- asyncTask{name: name, run: run}:
		return true
	default:
		d.pending.Done()
		d.fail(name, ErrDispatcherBusy)
		return false
	}
}

// Wait 等待已提交的任务全部执行完
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close 停止接收任务并等待 worker 退出
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) work() {
	defer d.workers.Done()
	for task := range d.tasks {
		err := d.run(task)
		d.metrics.AsyncTask(task.name, err)
		if err != nil {
			d.sink(task.name, err)
		}
		d.pending.Done()
	}
}

func (d *Dispatcher) run(task asyncTask) (err error) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.run(ctx)
}

func (d *Dispatcher) fail(name string, err error) {
	d.metrics.AsyncTask(name, err)
	d.sink(name, err)
}
