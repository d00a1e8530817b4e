package checklist

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// the push channel delivers no replay across a reconnect.
// connect callbacks fire on every connect so that the owner can do a fresh load

type PushTransportSettings struct {
	HandshakeTimeout  time.Duration
	ReconnectTimeout  time.Duration
	PingTimeout       time.Duration
	WriteTimeout      time.Duration
	ReadTimeout       time.Duration
	ReceiveBufferSize int
}

func DefaultPushTransportSettings() *PushTransportSettings {
	return &PushTransportSettings{
		HandshakeTimeout:  5 * time.Second,
		ReconnectTimeout:  5 * time.Second,
		PingTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReadTimeout:       60 * time.Second,
		ReceiveBufferSize: 32,
	}
}

// (connectCount) where connectCount starts at 1
type ConnectFunction = func(connectCount int)

type PushTransport struct {
	wsUrl      string
	credential *CredentialContext
	settings   *PushTransportSettings

	receive chan []byte

	stateLock    sync.Mutex
	connectCount int
	connected    bool

	connectCallbacks *CallbackList[ConnectFunction]
}

func NewPushTransportWithDefaults(wsUrl string, credential *CredentialContext) *PushTransport {
	return NewPushTransport(wsUrl, credential, DefaultPushTransportSettings())
}

func NewPushTransport(wsUrl string, credential *CredentialContext, settings *PushTransportSettings) *PushTransport {
	return &PushTransport{
		wsUrl:            wsUrl,
		credential:       credential,
		settings:         settings,
		receive:          make(chan []byte, settings.ReceiveBufferSize),
		connectCallbacks: NewCallbackList[ConnectFunction](),
	}
}

func (self *PushTransport) AddConnectCallback(connectCallback ConnectFunction) func() {
	callbackId := self.connectCallbacks.Add(connectCallback)
	return func() {
		self.connectCallbacks.Remove(callbackId)
	}
}

// inbound text frames, across all connections. closed when `Run` returns
func (self *PushTransport) Receive() <-chan []byte {
	return self.receive
}

func (self *PushTransport) Connected() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.connected
}

func (self *PushTransport) setConnected(connected bool) int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.connected = connected
	if connected {
		self.connectCount += 1
	}
	return self.connectCount
}

// the handshake url carries the client id so that the server can key the connection
func (self *PushTransport) connectUrl() (string, error) {
	u, err := url.Parse(self.wsUrl)
	if err != nil {
		return "", err
	}
	query := u.Query()
	query.Set("client_id", self.credential.ClientId().String())
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// connects and reconnects until the context is done
func (self *PushTransport) Run(ctx context.Context) error {
	defer close(self.receive)

	clientId := self.credential.ClientId()

	connectUrl, err := self.connectUrl()
	if err != nil {
		return err
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: self.settings.HandshakeTimeout,
	}

	for {
		reconnect := NewReconnect(self.settings.ReconnectTimeout)
		connect := func() (*websocket.Conn, error) {
			ws, _, err := dialer.DialContext(ctx, connectUrl, self.credential.Headers())
			return ws, err
		}

		var ws *websocket.Conn
		var err error
		if glog.V(LogLevelDebug) {
			ws, err = TraceWithReturnError(fmt.Sprintf("[t]connect %s", clientId), connect)
		} else {
			ws, err = connect()
		}
		if err != nil {
			glog.Infof("[t]connect error %s = %s\n", clientId, err)
			select {
			case <-ctx.Done():
				return nil
			case <-reconnect.After():
				continue
			}
		}

		c := func() {
			defer ws.Close()

			handleCtx, handleCancel := context.WithCancel(ctx)
			defer handleCancel()

			connectCount := self.setConnected(true)
			defer self.setConnected(false)
			for _, connectCallback := range self.connectCallbacks.Get() {
				HandleError(func() {
					connectCallback(connectCount)
				})
			}

			ws.SetPingHandler(func(appData string) error {
				ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
				deadline := time.Now().Add(self.settings.WriteTimeout)
				return ws.WriteControl(websocket.PongMessage, []byte(appData), deadline)
			})
			ws.SetPongHandler(func(string) error {
				ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
				return nil
			})

			go func() {
				defer handleCancel()

				for {
					select {
					case <-handleCtx.Done():
						// unblock the reader
						ws.Close()
						return
					case <-time.After(self.settings.PingTimeout):
						deadline := time.Now().Add(self.settings.WriteTimeout)
						if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
							// note that for websocket a deadline timeout cannot be recovered
							glog.Infof("[ts]ping %s error = %s\n", clientId, err)
							return
						}
					}
				}
			}()

			for {
				ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
				messageType, message, err := ws.ReadMessage()
				if err != nil {
					select {
					case <-handleCtx.Done():
					default:
						glog.Infof("[tr]%s<- error = %s\n", clientId, err)
					}
					return
				}

				switch messageType {
				case websocket.TextMessage:
					select {
					case <-handleCtx.Done():
						return
					case self.receive <- message:
						debugf("[tr]%s<- %d bytes\n", clientId, len(message))
					case <-time.After(self.settings.ReadTimeout):
						glog.Infof("[tr]drop %s<-\n", clientId)
					}
				default:
					debugf("[tr]other=%d %s<-\n", messageType, clientId)
				}
			}
		}
		reconnect = NewReconnect(self.settings.ReconnectTimeout)
		if glog.V(LogLevelDebug) {
			Trace(fmt.Sprintf("[t]connect run %s", clientId), c)
		} else {
			c()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-reconnect.After():
			glog.Infof("[t]reconnect %s\n", clientId)
		}
	}
}
