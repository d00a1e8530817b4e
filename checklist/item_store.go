package checklist

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const DefaultCommitDelay = 1500 * time.Millisecond

type ItemStoreSettings struct {
	// the undo window of an optimistic toggle
	CommitDelay           time.Duration
	CommitTimeout         time.Duration
	CommitErrorBufferSize int
}

func DefaultItemStoreSettings() *ItemStoreSettings {
	return &ItemStoreSettings{
		CommitDelay:           DefaultCommitDelay,
		CommitTimeout:         30 * time.Second,
		CommitErrorBufferSize: 32,
	}
}

type ChangeFunction = func()

// ephemeral, exists from an optimistic toggle until its timer fires or it is canceled
type pendingToggle struct {
	uid        string
	generation uint64
	// the value to restore on cancel
	previousIsChecked bool
	task              ScheduledTask
}

// the authoritative mirror of the items in the active namespace.
// every entry point mutates the mirror in one locked step;
// network calls happen outside the lock and their results are applied only
// if the mirror generation is unchanged.
type ItemStore struct {
	ctx    context.Context
	cancel context.CancelFunc

	api       ItemApi
	scheduler Scheduler
	settings  *ItemStoreSettings

	stateLock    sync.Mutex
	namespaceKey NamespaceKey
	// incremented when the mirror is discarded. results for an older generation are dropped
	generation   uint64
	loadSequence uint64
	items        []*Item
	// side table keyed by uid
	pendingToggles map[string]*pendingToggle
	// commit requests in flight, by uid
	commits map[string]int

	changeCallbacks *CallbackList[ChangeFunction]
	commitErrors    chan *CommitError
}

func NewItemStoreWithDefaults(ctx context.Context, api ItemApi) *ItemStore {
	return NewItemStore(ctx, api, NewTimeScheduler(), DefaultItemStoreSettings())
}

func NewItemStore(ctx context.Context, api ItemApi, scheduler Scheduler, settings *ItemStoreSettings) *ItemStore {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &ItemStore{
		ctx:             cancelCtx,
		cancel:          cancel,
		api:             api,
		scheduler:       scheduler,
		settings:        settings,
		items:           []*Item{},
		pendingToggles:  map[string]*pendingToggle{},
		commits:         map[string]int{},
		changeCallbacks: NewCallbackList[ChangeFunction](),
		commitErrors:    make(chan *CommitError, settings.CommitErrorBufferSize),
	}
}

func (self *ItemStore) AddChangeCallback(changeCallback ChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

// toggle commit failures. the channel is buffered and errors are dropped when it is full
func (self *ItemStore) CommitErrors() <-chan *CommitError {
	return self.commitErrors
}

func (self *ItemStore) changed() {
	for _, changeCallback := range self.changeCallbacks.Get() {
		HandleError(changeCallback)
	}
}

func (self *ItemStore) NamespaceKey() NamespaceKey {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.namespaceKey
}

// a copy of the mirror in list order
func (self *ItemStore) Items() []Item {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	items := make([]Item, 0, len(self.items))
	for _, item := range self.items {
		items = append(items, *item)
	}
	return items
}

func (self *ItemStore) Item(uid string) (Item, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if i := self.indexOf(uid); 0 <= i {
		return *self.items[i], true
	}
	return Item{}, false
}

func (self *ItemStore) HasPendingToggle(uid string) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	_, ok := self.pendingToggles[uid]
	return ok
}

func (self *ItemStore) PendingToggleUids() []string {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	uids := maps.Keys(self.pendingToggles)
	slices.Sort(uids)
	return uids
}

// true when no toggle is pending or committing
func (self *ItemStore) Idle() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.pendingToggles) == 0 && len(self.commits) == 0
}

// waits until all optimistic toggles have committed or been canceled
func (self *ItemStore) WaitIdle(ctx context.Context) error {
	notify := make(chan struct{}, 1)
	remove := self.AddChangeCallback(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer remove()

	for !self.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notify:
		}
	}
	return nil
}

// must be called with `stateLock`
func (self *ItemStore) indexOf(uid string) int {
	return slices.IndexFunc(self.items, func(item *Item) bool {
		return item.Uid == uid
	})
}

// must be called with `stateLock`
func (self *ItemStore) cancelPendingToggle(uid string) {
	if pending, ok := self.pendingToggles[uid]; ok {
		pending.task.Cancel()
		delete(self.pendingToggles, uid)
		debugf("[s]toggle %s canceled\n", uid)
	}
}

// must be called with `stateLock`
func (self *ItemStore) cancelPendingToggles() {
	for uid := range self.pendingToggles {
		self.cancelPendingToggle(uid)
	}
}

// must be called with `stateLock`
// adds the item at the end, or updates the item in place when the uid is already present
func (self *ItemStore) upsert(item *Item) {
	if i := self.indexOf(item.Uid); 0 <= i {
		existing := self.items[i]
		existing.Name = item.Name
		existing.Category = item.Category
		existing.IsChecked = item.IsChecked
		return
	}
	self.items = append(self.items, &Item{
		Uid:       item.Uid,
		Name:      item.Name,
		Category:  item.Category,
		IsChecked: item.IsChecked,
	})
}

// discards the mirror and all pending toggles, and activates `namespaceKey`.
// results of requests issued before the reset are dropped
func (self *ItemStore) Reset(namespaceKey NamespaceKey) {
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		self.generation += 1
		self.cancelPendingToggles()
		maps.Clear(self.commits)
		self.items = []*Item{}
		self.namespaceKey = namespaceKey
	}()
	debugf("[s]reset %s\n", namespaceKey)
	self.changed()
}

// replaces the mirror with the server item set. not retried on failure
func (self *ItemStore) Load(ctx context.Context) error {
	var generation uint64
	var loadSequence uint64
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.loadSequence += 1
		generation = self.generation
		loadSequence = self.loadSequence
	}()

	serverItems, err := self.api.ListItems(ctx)
	if err != nil {
		glog.Infof("[s]load error = %s\n", err)
		return err
	}

	err = func() error {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if generation != self.generation || loadSequence != self.loadSequence {
			return ErrStaleResult
		}

		self.cancelPendingToggles()
		items := make([]*Item, 0, len(serverItems))
		uids := map[string]bool{}
		for _, serverItem := range serverItems {
			if uids[serverItem.Uid] {
				glog.Infof("[s]load drop duplicate uid %s\n", serverItem.Uid)
				continue
			}
			uids[serverItem.Uid] = true
			items = append(items, &Item{
				Uid:       serverItem.Uid,
				Name:      serverItem.Name,
				Category:  serverItem.Category,
				IsChecked: serverItem.IsChecked,
			})
		}
		self.items = items
		return nil
	}()
	if err != nil {
		glog.Infof("[s]load dropped = %s\n", err)
		return err
	}
	debugf("[s]loaded %d items\n", len(serverItems))
	self.changed()
	return nil
}

func (self *ItemStore) generationMatches(generation uint64) bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return generation == self.generation
}

func (self *ItemStore) currentGeneration() uint64 {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.generation
}

// on failure the mirror is unchanged
func (self *ItemStore) Add(ctx context.Context, name string, category string) (*Item, error) {
	generation := self.currentGeneration()

	item, err := self.api.AddItem(ctx, name, category)
	if err != nil {
		return nil, err
	}

	applied := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if generation != self.generation {
			return false
		}
		self.upsert(item)
		return true
	}()
	if !applied {
		glog.Infof("[s]add %s dropped = %s\n", item.Uid, ErrStaleResult)
		return item, nil
	}
	self.changed()
	return item, nil
}

// requires `uid` in the mirror. on failure the mirror is unchanged
func (self *ItemStore) Edit(ctx context.Context, uid string, name string, category string) error {
	var generation uint64
	found := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		generation = self.generation
		return 0 <= self.indexOf(uid)
	}()
	if !found {
		return newOperationError("edit", http.StatusNotFound, fmt.Sprintf("%s: %s", ErrItemNotFound, uid))
	}

	if err := self.api.EditItem(ctx, uid, name, category); err != nil {
		return err
	}

	applied := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if generation != self.generation {
			return false
		}
		i := self.indexOf(uid)
		if i < 0 {
			// deleted while the edit was in flight
			return false
		}
		self.items[i].Name = name
		self.items[i].Category = category
		return true
	}()
	if !applied {
		glog.Infof("[s]edit %s dropped\n", uid)
		return nil
	}
	self.changed()
	return nil
}

// on failure the mirror is unchanged
func (self *ItemStore) Remove(ctx context.Context, uid string) error {
	generation := self.currentGeneration()

	if err := self.api.DeleteItem(ctx, uid); err != nil {
		return err
	}

	applied := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		if generation != self.generation {
			return false
		}
		i := self.indexOf(uid)
		if i < 0 {
			return false
		}
		self.cancelPendingToggle(uid)
		self.items = slices.Delete(self.items, i, i+1)
		return true
	}()
	if !applied {
		glog.Infof("[s]remove %s dropped\n", uid)
		return nil
	}
	self.changed()
	return nil
}

// drives the optimistic toggle state machine. a toggle flips `IsChecked` right away and
// arms a commit after the commit delay. a second toggle before the commit cancels it and
// restores the previous value without a request.
// failures surface on `CommitErrors`
func (self *ItemStore) Toggle(uid string) {
	changed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		i := self.indexOf(uid)
		if i < 0 {
			glog.Infof("[s]toggle %s = %s\n", uid, ErrItemNotFound)
			return false
		}
		item := self.items[i]

		if pending, ok := self.pendingToggles[uid]; ok {
			// undo window
			pending.task.Cancel()
			delete(self.pendingToggles, uid)
			item.IsChecked = pending.previousIsChecked
			item.IsPrechecked = false
			debugf("[s]toggle %s undo\n", uid)
			return true
		}

		pending := &pendingToggle{
			uid:               uid,
			generation:        self.generation,
			previousIsChecked: item.IsChecked,
		}
		item.IsChecked = !item.IsChecked
		item.IsPrechecked = true
		pending.task = self.scheduler.Schedule(self.settings.CommitDelay, func() {
			self.commit(pending)
		})
		self.pendingToggles[uid] = pending
		debugf("[s]toggle %s armed is_checked=%t\n", uid, item.IsChecked)
		return true
	}()
	if changed {
		self.changed()
	}
}

func (self *ItemStore) commit(pending *pendingToggle) {
	uid := pending.uid

	var isChecked bool
	armed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.pendingToggles[uid] != pending {
			// canceled after the timer fired
			return false
		}
		delete(self.pendingToggles, uid)

		i := self.indexOf(uid)
		if i < 0 {
			return false
		}
		isChecked = self.items[i].IsChecked
		self.commits[uid] += 1
		return true
	}()
	if !armed {
		return
	}
	defer func() {
		func() {
			self.stateLock.Lock()
			defer self.stateLock.Unlock()
			if pending.generation == self.generation {
				self.commits[uid] -= 1
				if self.commits[uid] <= 0 {
					delete(self.commits, uid)
				}
			}
		}()
		self.changed()
	}()

	debugf("[s]toggle %s commit is_checked=%t\n", uid, isChecked)

	ctx, cancel := context.WithTimeout(self.ctx, self.settings.CommitTimeout)
	defer cancel()
	serverItem, err := self.api.ToggleItem(ctx, uid)

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	dropped := func(reason error) {
		if err != nil {
			glog.Infof("[s]toggle %s commit dropped = %s (commit error = %s)\n", uid, reason, err)
		} else {
			glog.Infof("[s]toggle %s commit dropped = %s\n", uid, reason)
		}
	}

	if pending.generation != self.generation {
		dropped(ErrStaleResult)
		return
	}
	i := self.indexOf(uid)
	if i < 0 {
		dropped(ErrItemNotFound)
		return
	}
	item := self.items[i]
	// a newer optimistic toggle owns the item now and its commit settles the value
	_, superseded := self.pendingToggles[uid]

	if err != nil {
		// no rollback. the item keeps its optimistic value
		if !superseded {
			item.IsPrechecked = false
		}
		commitErr := &CommitError{
			Uid:       uid,
			IsChecked: isChecked,
			Err:       err,
		}
		glog.Infof("[s]%s\n", commitErr)
		select {
		case self.commitErrors <- commitErr:
		default:
			glog.Infof("[s]drop commit error %s\n", uid)
		}
		return
	}

	if superseded {
		debugf("[s]toggle %s commit superseded\n", uid)
		return
	}
	item.IsChecked = serverItem.IsChecked
	item.IsPrechecked = false
}

// the merge entry point for remote events. events are not deduplicated;
// an unknown uid is a no-op. remote toggles bypass the optimistic state machine
func (self *ItemStore) ApplyRemoteEvent(event *Event) {
	changed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		data := event.Data
		switch event.Type {
		case EventTypeAdd:
			self.upsert(data.Item())
			return true
		case EventTypeEdit:
			i := self.indexOf(data.Uid)
			if i < 0 {
				return false
			}
			self.items[i].Name = data.Name
			self.items[i].Category = data.Category
			return true
		case EventTypeToggle:
			i := self.indexOf(data.Uid)
			if i < 0 {
				return false
			}
			// a pending local toggle keeps its timer and still commits
			self.items[i].IsChecked = data.IsChecked
			return true
		case EventTypeDelete:
			i := self.indexOf(data.Uid)
			if i < 0 {
				return false
			}
			self.cancelPendingToggle(data.Uid)
			self.items = slices.Delete(self.items, i, i+1)
			return true
		default:
			return false
		}
	}()
	if changed {
		debugf("[s]applied %s\n", event)
		self.changed()
	} else {
		debugf("[s]no-op %s\n", event)
	}
}

// cancels pending toggles without committing them
func (self *ItemStore) Close() {
	self.cancel()

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.cancelPendingToggles()
}
