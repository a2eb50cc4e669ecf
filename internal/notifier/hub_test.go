package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newHubServer 起一个把连接按 /<campaignId> 登记到 hub 的测试服务
func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		campaignId, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/"), 10, 64)
		if err != nil {
			http.Error(w, "bad campaign id", http.StatusBadRequest)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Subscribe(campaignId, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialCampaign(t *testing.T, srv *httptest.Server, campaignId int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + strconv.FormatInt(campaignId, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastDepth*2; i++ {
			hub.Publish(Event{Type: EventCampaignUpdated, CampaignId: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without subscribers")
	}
}

func TestSubscriberReceivesOrderedEvents(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	srv := newHubServer(t, hub)
	conn := dialCampaign(t, srv, 7)

	// 等注册消息被分发循环处理掉
	time.Sleep(50 * time.Millisecond)

	hub.Publish(Event{Type: EventCampaignUpdated, CampaignId: 7})
	hub.Publish(Event{Type: EventNewContribution, CampaignId: 7})
	hub.Publish(Event{Type: EventCampaignCompleted, CampaignId: 7})

	assert.Equal(t, EventCampaignUpdated, readEvent(t, conn).Type)
	assert.Equal(t, EventNewContribution, readEvent(t, conn).Type)
	assert.Equal(t, EventCampaignCompleted, readEvent(t, conn).Type)
}

func TestEventsScopedToCampaign(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	srv := newHubServer(t, hub)
	connA := dialCampaign(t, srv, 1)
	connB := dialCampaign(t, srv, 2)

	time.Sleep(50 * time.Millisecond)

	hub.Publish(Event{Type: EventNewContribution, CampaignId: 1})

	ev := readEvent(t, connA)
	assert.Equal(t, int64(1), ev.CampaignId)

	// 其他活动的订阅者收不到
	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := connB.ReadMessage()
	assert.Error(t, err)
}

func TestDisconnectedClientUnregistered(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	srv := newHubServer(t, hub)
	conn := dialCampaign(t, srv, 3)

	time.Sleep(50 * time.Millisecond)
	conn.Close()
	time.Sleep(50 * time.Millisecond)

	// 断开后再发布既不 panic 也不阻塞
	hub.Publish(Event{Type: EventCampaignUpdated, CampaignId: 3})
	time.Sleep(50 * time.Millisecond)
}
