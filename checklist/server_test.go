package checklist

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/slices"
)

// an in-process checklist server for the rest and push collaborators.
// items are partitioned by the namespace headers, and every mutation is
// broadcast to all push connections
type testServer struct {
	server *httptest.Server

	stateLock sync.Mutex
	items     map[NamespaceKey][]*Item
	// list requests by namespace
	listCounts  map[NamespaceKey]int
	toggleCount int
	headers     []http.Header
	conns       map[string]*websocket.Conn
	connectIds  []string
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	self := &testServer{
		items:      map[NamespaceKey][]*Item{},
		listCounts: map[NamespaceKey]int{},
		conns:      map[string]*websocket.Conn{},
	}

	router := gin.New()
	router.GET("/items/", self.list)
	router.GET("/items/add", self.add)
	router.GET("/items/edit", self.edit)
	router.GET("/items/delete", self.delete)
	router.GET("/items/toggle", self.toggle)
	router.GET("/ws", self.ws)

	self.server = httptest.NewServer(router)
	t.Cleanup(self.Close)
	return self
}

func (self *testServer) ApiUrl() string {
	return self.server.URL
}

func (self *testServer) WsUrl() string {
	return "ws" + strings.TrimPrefix(self.server.URL, "http") + "/ws"
}

func (self *testServer) Close() {
	self.stateLock.Lock()
	for _, conn := range self.conns {
		conn.Close()
	}
	self.stateLock.Unlock()
	self.server.Close()
}

func (self *testServer) Seed(key NamespaceKey, items ...*Item) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.items[key] = append(self.items[key], items...)
}

func (self *testServer) ListCount(key NamespaceKey) int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.listCounts[key]
}

func (self *testServer) ToggleCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.toggleCount
}

func (self *testServer) ConnectIds() []string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return slices.Clone(self.connectIds)
}

func (self *testServer) LastHeader() http.Header {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if len(self.headers) == 0 {
		return http.Header{}
	}
	return self.headers[len(self.headers)-1]
}

func (self *testServer) Item(key NamespaceKey, uid string) (Item, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if i := self.indexOf(key, uid); 0 <= i {
		return *self.items[key][i], true
	}
	return Item{}, false
}

// disconnects every push connection
func (self *testServer) Disconnect() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	for clientId, conn := range self.conns {
		conn.Close()
		delete(self.conns, clientId)
	}
}

// must be called with `stateLock`
func (self *testServer) indexOf(key NamespaceKey, uid string) int {
	return slices.IndexFunc(self.items[key], func(item *Item) bool {
		return item.Uid == uid
	})
}

func (self *testServer) request(c *gin.Context) NamespaceKey {
	self.headers = append(self.headers, c.Request.Header.Clone())
	return NamespaceKey{
		Prefix: c.GetHeader(HeaderNamespacePrefix),
		Name:   c.GetHeader(HeaderNamespace),
	}
}

// must be called with `stateLock`
func (self *testServer) broadcast(clientId string, eventType EventType, key NamespaceKey, item *Item) {
	message, _ := json.Marshal(&Event{
		ClientId: clientId,
		Type:     eventType,
		Data: &EventData{
			Uid:             item.Uid,
			Name:            item.Name,
			Category:        item.Category,
			IsChecked:       item.IsChecked,
			NamespacePrefix: key.Prefix,
			Namespace:       key.Name,
		},
	})
	for connClientId, conn := range self.conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			conn.Close()
			delete(self.conns, connClientId)
		}
	}
}

func (self *testServer) list(c *gin.Context) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	key := self.request(c)
	self.listCounts[key] += 1
	items := self.items[key]
	if items == nil {
		items = []*Item{}
	}
	c.JSON(http.StatusOK, items)
}

func (self *testServer) add(c *gin.Context) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	key := self.request(c)
	item := &Item{
		Uid:      uuid.NewString(),
		Name:     c.Query("name"),
		Category: c.Query("category"),
	}
	self.items[key] = append(self.items[key], item)
	self.broadcast(c.GetHeader(HeaderClientId), EventTypeAdd, key, item)
	c.JSON(http.StatusOK, item)
}

func (self *testServer) edit(c *gin.Context) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	key := self.request(c)
	i := self.indexOf(key, c.Query("uid"))
	if i < 0 {
		c.Status(http.StatusNotFound)
		return
	}
	item := self.items[key][i]
	item.Name = c.Query("name")
	item.Category = c.Query("category")
	self.broadcast(c.GetHeader(HeaderClientId), EventTypeEdit, key, item)
	c.Status(http.StatusOK)
}

func (self *testServer) delete(c *gin.Context) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	key := self.request(c)
	i := self.indexOf(key, c.Query("uid"))
	if i < 0 {
		c.Status(http.StatusNotFound)
		return
	}
	item := self.items[key][i]
	self.items[key] = slices.Delete(self.items[key], i, i+1)
	self.broadcast(c.GetHeader(HeaderClientId), EventTypeDelete, key, item)
	c.Status(http.StatusOK)
}

func (self *testServer) toggle(c *gin.Context) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	key := self.request(c)
	self.toggleCount += 1
	i := self.indexOf(key, c.Query("uid"))
	if i < 0 {
		c.Status(http.StatusNotFound)
		return
	}
	item := self.items[key][i]
	item.IsChecked = !item.IsChecked
	self.broadcast(c.GetHeader(HeaderClientId), EventTypeToggle, key, item)
	c.JSON(http.StatusOK, item)
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (self *testServer) ws(c *gin.Context) {
	conn, err := testUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	clientId := c.Query("client_id")

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.request(c)
		self.conns[clientId] = conn
		self.connectIds = append(self.connectIds, clientId)
	}()

	// drain control frames until the connection closes
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
