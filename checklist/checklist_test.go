package checklist

import (
	"context"
	"flag"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

func init() {
	initGlog()
}

func initGlog() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "0")
}

// runs due tasks synchronously on `Advance`
type manualScheduler struct {
	stateLock sync.Mutex
	now       time.Duration
	tasks     []*manualTask
}

type manualTask struct {
	scheduler *manualScheduler
	at        time.Duration
	task      func()
	done      bool
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{}
}

func (self *manualScheduler) Schedule(delay time.Duration, task func()) ScheduledTask {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	scheduledTask := &manualTask{
		scheduler: self,
		at:        self.now + delay,
		task:      task,
	}
	self.tasks = append(self.tasks, scheduledTask)
	return scheduledTask
}

func (self *manualTask) Cancel() bool {
	self.scheduler.stateLock.Lock()
	defer self.scheduler.stateLock.Unlock()
	if self.done {
		return false
	}
	self.done = true
	return true
}

func (self *manualScheduler) Advance(d time.Duration) {
	var due []*manualTask
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		self.now += d
		remaining := []*manualTask{}
		for _, task := range self.tasks {
			if task.done {
				continue
			}
			if task.at <= self.now {
				task.done = true
				due = append(due, task)
			} else {
				remaining = append(remaining, task)
			}
		}
		self.tasks = remaining
	}()
	slices.SortStableFunc(due, func(a *manualTask, b *manualTask) int {
		return int(a.at - b.at)
	})
	for _, task := range due {
		task.task()
	}
}

// tasks neither run nor canceled
func (self *manualScheduler) PendingCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	count := 0
	for _, task := range self.tasks {
		if !task.done {
			count += 1
		}
	}
	return count
}

// an in-memory `ItemApi` with request counters
type testApi struct {
	stateLock sync.Mutex
	items     []*Item

	listCount   int
	addCount    int
	editCount   int
	deleteCount int
	toggleCount int

	toggleErr error
	// called at the start of each list, outside the lock
	listHook func()
}

func newTestApi(items ...*Item) *testApi {
	return &testApi{
		items: items,
	}
}

func (self *testApi) indexOf(uid string) int {
	return slices.IndexFunc(self.items, func(item *Item) bool {
		return item.Uid == uid
	})
}

func (self *testApi) ListItems(ctx context.Context) ([]*Item, error) {
	self.stateLock.Lock()
	listHook := self.listHook
	self.listCount += 1
	self.stateLock.Unlock()

	if listHook != nil {
		listHook()
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	items := []*Item{}
	for _, item := range self.items {
		itemCopy := *item
		items = append(items, &itemCopy)
	}
	return items, nil
}

func (self *testApi) AddItem(ctx context.Context, name string, category string) (*Item, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.addCount += 1
	item := &Item{
		Uid:      uuid.NewString(),
		Name:     name,
		Category: category,
	}
	self.items = append(self.items, item)
	itemCopy := *item
	return &itemCopy, nil
}

func (self *testApi) EditItem(ctx context.Context, uid string, name string, category string) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.editCount += 1
	i := self.indexOf(uid)
	if i < 0 {
		return newOperationError("edit", http.StatusNotFound, "")
	}
	self.items[i].Name = name
	self.items[i].Category = category
	return nil
}

func (self *testApi) DeleteItem(ctx context.Context, uid string) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.deleteCount += 1
	i := self.indexOf(uid)
	if i < 0 {
		return newOperationError("delete", http.StatusNotFound, "")
	}
	self.items = slices.Delete(self.items, i, i+1)
	return nil
}

func (self *testApi) ToggleItem(ctx context.Context, uid string) (*Item, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.toggleCount += 1
	if self.toggleErr != nil {
		return nil, self.toggleErr
	}
	i := self.indexOf(uid)
	if i < 0 {
		return nil, newOperationError("toggle", http.StatusNotFound, "")
	}
	self.items[i].IsChecked = !self.items[i].IsChecked
	itemCopy := *self.items[i]
	return &itemCopy, nil
}

func (self *testApi) ToggleCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.toggleCount
}

func (self *testApi) ListCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.listCount
}

func (self *testApi) Item(uid string) (Item, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	if i := self.indexOf(uid); 0 <= i {
		return *self.items[i], true
	}
	return Item{}, false
}

func TestIdString(t *testing.T) {
	// ulids are ordered by create time, and so is their text form
	a := NewId()
	for i := 0; i < 1024; i++ {
		b := NewId()
		assert.Equal(t, a.String() < b.String(), true)
		assert.Equal(t, a == b, false)

		parsed, err := uuid.Parse(b.String())
		assert.Equal(t, err, nil)
		assert.Equal(t, Id(parsed), b)
		a = b
	}
}
