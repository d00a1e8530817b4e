package checklist

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

const GlobalNamespacePrefix = "g"
const DefaultNamespaceName = "default"

// comparable
// identifies an isolated list scope. items and events never cross namespaces
type NamespaceKey struct {
	Prefix string
	Name   string
}

var DefaultNamespaceKey = NamespaceKey{
	Prefix: GlobalNamespacePrefix,
	Name:   DefaultNamespaceName,
}

func (self NamespaceKey) Valid() bool {
	return self.Prefix != "" && self.Name != "" &&
		!strings.Contains(self.Prefix, "/") && !strings.Contains(self.Name, "/")
}

func (self NamespaceKey) IsGlobal() bool {
	return self == DefaultNamespaceKey
}

func (self NamespaceKey) Fragment() string {
	return fmt.Sprintf("#/%s/%s", self.Prefix, self.Name)
}

func (self NamespaceKey) String() string {
	return fmt.Sprintf("%s/%s", self.Prefix, self.Name)
}

// parses `#/prefix/name`, `/prefix/name`, or `prefix/name`
func ParseNamespaceKey(s string) (NamespaceKey, error) {
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(s, "/")
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return NamespaceKey{}, fmt.Errorf("%w: %q", ErrInvalidNamespace, s)
	}
	key := NamespaceKey{
		Prefix: parts[0],
		Name:   parts[1],
	}
	if !key.Valid() {
		return NamespaceKey{}, fmt.Errorf("%w: %q", ErrInvalidNamespace, s)
	}
	return key, nil
}

type NamespaceChangeFunction = func(previousKey NamespaceKey, key NamespaceKey)

// resolves and holds the single active namespace key
type NamespaceContext struct {
	kv KeyValueStore

	stateLock sync.Mutex
	key       NamespaceKey

	changeCallbacks *CallbackList[NamespaceChangeFunction]
}

func NewNamespaceContext(kv KeyValueStore) *NamespaceContext {
	return &NamespaceContext{
		kv:              kv,
		changeCallbacks: NewCallbackList[NamespaceChangeFunction](),
	}
}

func (self *NamespaceContext) AddChangeCallback(changeCallback NamespaceChangeFunction) func() {
	callbackId := self.changeCallbacks.Add(changeCallback)
	return func() {
		self.changeCallbacks.Remove(callbackId)
	}
}

// the zero key until resolved
func (self *NamespaceContext) Key() NamespaceKey {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.key
}

// resolution order is the fragment when well formed, then durable storage, then the default key.
// a key taken from the fragment is persisted
func (self *NamespaceContext) Resolve(fragment string) (NamespaceKey, bool, error) {
	if fragment != "" {
		if key, err := ParseNamespaceKey(fragment); err == nil {
			changed, err := self.Set(key)
			return key, changed, err
		}
		debugf("[ns]ignore fragment %q\n", fragment)
	}

	key, err := self.stored()
	if err != nil {
		return NamespaceKey{}, false, err
	}
	changed := self.activate(key)
	return key, changed, nil
}

func (self *NamespaceContext) stored() (NamespaceKey, error) {
	prefix, prefixOk, err := self.kv.Get(KeyNamespacePrefix)
	if err != nil {
		return NamespaceKey{}, err
	}
	name, nameOk, err := self.kv.Get(KeyNamespace)
	if err != nil {
		return NamespaceKey{}, err
	}
	key := NamespaceKey{
		Prefix: prefix,
		Name:   name,
	}
	if prefixOk && nameOk && key.Valid() {
		return key, nil
	}
	return DefaultNamespaceKey, nil
}

// persists and activates `key`. returns true if the active key changed
func (self *NamespaceContext) Set(key NamespaceKey) (bool, error) {
	if !key.Valid() {
		return false, fmt.Errorf("%w: %s", ErrInvalidNamespace, key)
	}
	if err := self.kv.Set(KeyNamespacePrefix, key.Prefix); err != nil {
		return false, err
	}
	if err := self.kv.Set(KeyNamespace, key.Name); err != nil {
		return false, err
	}
	return self.activate(key), nil
}

func (self *NamespaceContext) activate(key NamespaceKey) bool {
	var previousKey NamespaceKey
	changed := func() bool {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()
		previousKey = self.key
		if previousKey == key {
			return false
		}
		self.key = key
		return true
	}()
	if changed {
		debugf("[ns]%s -> %s\n", previousKey, key)
		for _, changeCallback := range self.changeCallbacks.Get() {
			HandleError(func() {
				changeCallback(previousKey, key)
			})
		}
	}
	return changed
}

// the parts of a url that configure a session
type UrlSurface struct {
	// one time token from the `token` query parameter
	Token string
	// set when the fragment names a well formed key
	Namespace *NamespaceKey
	// the url with the token removed, so that a reload does not consume it again
	ClearedUrl string
}

func ParseUrlSurface(rawUrl string) (*UrlSurface, error) {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return nil, err
	}

	surface := &UrlSurface{}

	query := u.Query()
	if token := query.Get("token"); token != "" {
		surface.Token = token
		query.Del("token")
		u.RawQuery = query.Encode()
	}

	if u.Fragment != "" {
		if key, err := ParseNamespaceKey(u.Fragment); err == nil {
			surface.Namespace = &key
		}
	}

	surface.ClearedUrl = u.String()
	return surface, nil
}
