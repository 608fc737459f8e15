package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"leadflow/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifier(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, time.Second, nil)
	err := n.Notify(context.Background(), Notification{Kind: NotifySalesAlert, Subject: "Great-fit demo lead", Body: "Ada, Engines Ltd"})
	require.NoError(t, err)
	assert.Equal(t, "*Great-fit demo lead*\nAda, Engines Ltd", body["text"])
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier("email", srv.URL, time.Second, nil)
	err := n.Notify(context.Background(), Notification{Kind: NotifyDraftApproved})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

type recordingNotifier struct {
	got chan Notification
	err error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{got: make(chan Notification, 16)}
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.got <- n
	return r.err
}

func (r *recordingNotifier) drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-r.got:
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestCompositeAndFilter(t *testing.T) {
	alerts := newRecordingNotifier()
	everything := newRecordingNotifier()
	everything.err = errors.New("down")

	c := CompositeNotifier{OnlyKinds(alerts, NotifySalesAlert), everything}

	err := c.Notify(context.Background(), Notification{Kind: NotifyLeadCreated})
	assert.Error(t, err)
	assert.Empty(t, alerts.drain())
	assert.Len(t, everything.drain(), 1)

	alerts.err = nil
	_ = c.Notify(context.Background(), Notification{Kind: NotifySalesAlert})
	assert.Len(t, alerts.drain(), 1)
}

func TestEventPublisher(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	q := queue.NewRedisQueue(client, "test")
	sub := q.Subscribe(ctx, EventChannel("org_a"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewEventPublisher(q).Notify(ctx, Notification{Kind: NotifyLeadCreated, TenantID: "org_a", LeadID: "l1"}))

	select {
	case msg := <-sub.Channel():
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, NotifyLeadCreated, n.Kind)
		assert.Equal(t, "l1", n.LeadID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not published")
	}
}

func TestQueueWorkflowStarter(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	q := queue.NewRedisQueue(client, "test")

	err := NewQueueWorkflowStarter(q).Start(ctx, "lead-qualification", WorkflowArgs{WorkflowID: "wf-1", TenantID: "org_a", LeadID: "l1", Tier: "qualified", Score: 86})
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, "lead-qualification")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "wf-1", job.ID)
	assert.Equal(t, "qualified", job.Args["tier"])
}
