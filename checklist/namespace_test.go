package checklist

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestParseNamespaceKey(t *testing.T) {
	for _, s := range []string{"#/t/team1", "/t/team1", "t/team1"} {
		key, err := ParseNamespaceKey(s)
		assert.Equal(t, err, nil)
		assert.Equal(t, key, NamespaceKey{Prefix: "t", Name: "team1"})
	}

	for _, s := range []string{"", "#/", "#/t", "#/t/", "#//team1", "#/t/team1/extra"} {
		_, err := ParseNamespaceKey(s)
		assert.Equal(t, errors.Is(err, ErrInvalidNamespace), true)
	}

	key := NamespaceKey{Prefix: "t", Name: "team1"}
	assert.Equal(t, key.Fragment(), "#/t/team1")
	assert.Equal(t, key.String(), "t/team1")
	assert.Equal(t, key.IsGlobal(), false)
	assert.Equal(t, DefaultNamespaceKey.IsGlobal(), true)
}

func TestNamespaceResolve(t *testing.T) {
	kv := NewMemoryKeyValueStore()
	namespace := NewNamespaceContext(kv)

	changes := [][2]NamespaceKey{}
	namespace.AddChangeCallback(func(previousKey NamespaceKey, key NamespaceKey) {
		changes = append(changes, [2]NamespaceKey{previousKey, key})
	})

	// nothing stored
	key, changed, err := namespace.Resolve("")
	assert.Equal(t, err, nil)
	assert.Equal(t, changed, true)
	assert.Equal(t, key, DefaultNamespaceKey)

	// a malformed fragment falls back to storage
	key, changed, err = namespace.Resolve("#/broken")
	assert.Equal(t, err, nil)
	assert.Equal(t, changed, false)
	assert.Equal(t, key, DefaultNamespaceKey)

	teamKey := NamespaceKey{Prefix: "t", Name: "team1"}
	key, changed, err = namespace.Resolve("#/t/team1")
	assert.Equal(t, err, nil)
	assert.Equal(t, changed, true)
	assert.Equal(t, key, teamKey)
	assert.Equal(t, namespace.Key(), teamKey)

	prefix, _, _ := kv.Get(KeyNamespacePrefix)
	name, _, _ := kv.Get(KeyNamespace)
	assert.Equal(t, prefix, "t")
	assert.Equal(t, name, "team1")

	// a new session resolves from storage
	namespace2 := NewNamespaceContext(kv)
	key, _, err = namespace2.Resolve("")
	assert.Equal(t, err, nil)
	assert.Equal(t, key, teamKey)

	assert.Equal(t, changes, [][2]NamespaceKey{
		{NamespaceKey{}, DefaultNamespaceKey},
		{DefaultNamespaceKey, teamKey},
	})

	_, err = namespace.Set(NamespaceKey{Prefix: "t"})
	assert.Equal(t, errors.Is(err, ErrInvalidNamespace), true)
	assert.Equal(t, namespace.Key(), teamKey)
}

func TestParseUrlSurface(t *testing.T) {
	surface, err := ParseUrlSurface("https://list.example.com/?token=abc&x=1#/t/team1")
	assert.Equal(t, err, nil)
	assert.Equal(t, surface.Token, "abc")
	assert.Equal(t, *surface.Namespace, NamespaceKey{Prefix: "t", Name: "team1"})
	assert.Equal(t, surface.ClearedUrl, "https://list.example.com/?x=1#/t/team1")

	surface, err = ParseUrlSurface("https://list.example.com/")
	assert.Equal(t, err, nil)
	assert.Equal(t, surface.Token, "")
	assert.Equal(t, surface.Namespace == nil, true)
	assert.Equal(t, surface.ClearedUrl, "https://list.example.com/")
}
