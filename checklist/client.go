package checklist

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

const DefaultApiUrl = "http://localhost:8080"
const DefaultWsUrl = "ws://localhost:8080/ws"

type ClientSettings struct {
	ApiUrl string
	WsUrl  string

	ApiSettings           *ApiSettings
	ItemStoreSettings     *ItemStoreSettings
	PushTransportSettings *PushTransportSettings
}

func DefaultClientSettings() *ClientSettings {
	return &ClientSettings{
		ApiUrl:                DefaultApiUrl,
		WsUrl:                 DefaultWsUrl,
		ApiSettings:           DefaultApiSettings(),
		ItemStoreSettings:     DefaultItemStoreSettings(),
		PushTransportSettings: DefaultPushTransportSettings(),
	}
}

// a checklist session. owns the mirror for the active namespace,
// the push channel that keeps it converged, and the view preferences
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *ClientSettings

	kv         KeyValueStore
	namespace  *NamespaceContext
	credential *CredentialContext
	api        *ChecklistApi
	store      *ItemStore
	bridge     *RealtimeEventBridge
	transport  *PushTransport

	stateLock   sync.Mutex
	preferences ViewPreferences

	viewCallbacks *CallbackList[ChangeFunction]
}

func NewClientWithDefaults(ctx context.Context, kv KeyValueStore) (*Client, error) {
	return NewClient(ctx, kv, NewTimeScheduler(), DefaultClientSettings())
}

func NewClient(
	ctx context.Context,
	kv KeyValueStore,
	scheduler Scheduler,
	settings *ClientSettings,
) (*Client, error) {
	token, _, err := kv.Get(KeyToken)
	if err != nil {
		return nil, err
	}
	preferences, err := LoadViewPreferences(kv)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)

	namespace := NewNamespaceContext(kv)
	credential := NewCredentialContext(NewId(), token, namespace)
	api := NewChecklistApi(settings.ApiUrl, credential, settings.ApiSettings)
	store := NewItemStore(cancelCtx, api, scheduler, settings.ItemStoreSettings)
	bridge := NewRealtimeEventBridge(store, store.NamespaceKey)
	transport := NewPushTransport(settings.WsUrl, credential, settings.PushTransportSettings)

	client := &Client{
		ctx:           cancelCtx,
		cancel:        cancel,
		settings:      settings,
		kv:            kv,
		namespace:     namespace,
		credential:    credential,
		api:           api,
		store:         store,
		bridge:        bridge,
		transport:     transport,
		preferences:   preferences,
		viewCallbacks: NewCallbackList[ChangeFunction](),
	}

	store.AddChangeCallback(client.viewChanged)
	transport.AddConnectCallback(client.connected)

	return client, nil
}

func (self *Client) ClientId() Id {
	return self.credential.ClientId()
}

func (self *Client) Credential() *CredentialContext {
	return self.credential
}

func (self *Client) Namespace() *NamespaceContext {
	return self.namespace
}

func (self *Client) Store() *ItemStore {
	return self.store
}

func (self *Client) IsGlobalNamespace() bool {
	return self.namespace.Key().IsGlobal()
}

// fires on any mirror or preference change
func (self *Client) AddViewChangeCallback(viewCallback ChangeFunction) func() {
	callbackId := self.viewCallbacks.Add(viewCallback)
	return func() {
		self.viewCallbacks.Remove(callbackId)
	}
}

func (self *Client) viewChanged() {
	for _, viewCallback := range self.viewCallbacks.Get() {
		HandleError(viewCallback)
	}
}

// no events are replayed across a reconnect, so every reconnect reloads the mirror
func (self *Client) connected(connectCount int) {
	if connectCount <= 1 {
		return
	}
	if err := self.store.Load(self.ctx); err != nil {
		glog.Infof("[c]reconnect load error = %s\n", err)
	}
}

// resolves the namespace from `fragment` and loads the mirror for it
func (self *Client) Start(ctx context.Context, fragment string) error {
	key, _, err := self.namespace.Resolve(fragment)
	if err != nil {
		return err
	}
	self.store.Reset(key)
	return self.store.Load(ctx)
}

// runs the push channel until the context is done or the client is closed.
// may be called once
func (self *Client) Run(ctx context.Context) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		select {
		case <-runCtx.Done():
		case <-self.ctx.Done():
			runCancel()
		}
	}()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return self.transport.Run(gCtx)
	})
	g.Go(func() error {
		self.bridge.Run(gCtx, self.transport.Receive())
		return nil
	})
	return g.Wait()
}

// switching discards the mirror and issues exactly one load for the new key.
// returns false without a load when `key` is already active
func (self *Client) SetNamespace(ctx context.Context, key NamespaceKey) (bool, error) {
	changed, err := self.namespace.Set(key)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	self.store.Reset(key)
	return true, self.store.Load(ctx)
}

// consumes the url surface. a token is persisted, a namespace fragment is activated.
// returns the url with the one time token removed
func (self *Client) OpenUrl(ctx context.Context, rawUrl string) (string, error) {
	surface, err := ParseUrlSurface(rawUrl)
	if err != nil {
		return "", err
	}
	if surface.Token != "" {
		if err := self.SetToken(surface.Token); err != nil {
			return "", err
		}
	}
	if surface.Namespace != nil {
		if _, err := self.SetNamespace(ctx, *surface.Namespace); err != nil {
			return surface.ClearedUrl, err
		}
	}
	return surface.ClearedUrl, nil
}

func (self *Client) SetToken(token string) error {
	if err := self.kv.Set(KeyToken, token); err != nil {
		return err
	}
	self.credential.SetToken(token)
	return nil
}

func (self *Client) ClearToken() error {
	if err := self.kv.Delete(KeyToken); err != nil {
		return err
	}
	self.credential.SetToken("")
	return nil
}

func (self *Client) Preferences() ViewPreferences {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.preferences
}

// persists the durable preferences when they change
func (self *Client) updatePreferences(update func(preferences *ViewPreferences)) error {
	var preferences ViewPreferences
	persist := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		previous := self.preferences
		update(&self.preferences)
		preferences = self.preferences
		return previous.HideCompleted != preferences.HideCompleted ||
			previous.IsGrouped != preferences.IsGrouped
	}()
	var err error
	if persist {
		err = SaveViewPreferences(self.kv, preferences)
	}
	self.viewChanged()
	return err
}

func (self *Client) SetSearchText(searchText string) error {
	return self.updatePreferences(func(preferences *ViewPreferences) {
		preferences.SetSearchText(searchText)
	})
}

func (self *Client) ClearSearch() error {
	return self.updatePreferences(func(preferences *ViewPreferences) {
		preferences.ClearSearch()
	})
}

func (self *Client) SetHideCompleted(hideCompleted bool) error {
	return self.updatePreferences(func(preferences *ViewPreferences) {
		preferences.SetHideCompleted(hideCompleted)
	})
}

func (self *Client) ShowCompleted() error {
	return self.SetHideCompleted(false)
}

func (self *Client) SetGrouped(isGrouped bool) error {
	return self.updatePreferences(func(preferences *ViewPreferences) {
		preferences.IsGrouped = isGrouped
	})
}

func (self *Client) View() *View {
	return BuildView(self.store.Items(), self.Preferences())
}

func (self *Client) SuggestCategories(text string) []string {
	return SuggestCategories(self.store.Items(), text)
}

func (self *Client) Items() []Item {
	return self.store.Items()
}

func (self *Client) Load(ctx context.Context) error {
	return self.store.Load(ctx)
}

func (self *Client) Add(ctx context.Context, name string, category string) (*Item, error) {
	return self.store.Add(ctx, name, category)
}

func (self *Client) Edit(ctx context.Context, uid string, name string, category string) error {
	return self.store.Edit(ctx, uid, name, category)
}

func (self *Client) Remove(ctx context.Context, uid string) error {
	return self.store.Remove(ctx, uid)
}

func (self *Client) Toggle(uid string) {
	self.store.Toggle(uid)
}

// waits for pending toggles to commit
func (self *Client) Flush(ctx context.Context) error {
	return self.store.WaitIdle(ctx)
}

func (self *Client) CommitErrors() <-chan *CommitError {
	return self.store.CommitErrors()
}

func (self *Client) Close() {
	self.cancel()
	self.store.Close()
}
