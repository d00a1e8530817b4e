package checklist

import (
	"strconv"

	"github.com/golang/glog"
)

type ViewPreferences struct {
	// not persisted
	SearchText    string
	HideCompleted bool
	IsGrouped     bool
}

func DefaultViewPreferences() ViewPreferences {
	return ViewPreferences{
		HideCompleted: false,
		IsGrouped:     true,
	}
}

// a non-empty search forces completed items to show, so a search never hides matches
func (self *ViewPreferences) SetSearchText(searchText string) {
	self.SearchText = searchText
	if searchText != "" {
		self.HideCompleted = false
	}
}

func (self *ViewPreferences) ClearSearch() {
	self.SearchText = ""
	self.HideCompleted = true
}

func (self *ViewPreferences) SetHideCompleted(hideCompleted bool) {
	if self.SearchText != "" {
		hideCompleted = false
	}
	self.HideCompleted = hideCompleted
}

func (self ViewPreferences) EffectiveHideCompleted() bool {
	return self.HideCompleted && self.SearchText == ""
}

// missing or malformed values keep their defaults
func LoadViewPreferences(kv KeyValueStore) (ViewPreferences, error) {
	preferences := DefaultViewPreferences()
	if v, ok, err := loadBool(kv, KeyHideCompleted); err != nil {
		return preferences, err
	} else if ok {
		preferences.HideCompleted = v
	}
	if v, ok, err := loadBool(kv, KeyIsGrouped); err != nil {
		return preferences, err
	} else if ok {
		preferences.IsGrouped = v
	}
	return preferences, nil
}

func SaveViewPreferences(kv KeyValueStore, preferences ViewPreferences) error {
	if err := kv.Set(KeyHideCompleted, strconv.FormatBool(preferences.HideCompleted)); err != nil {
		return err
	}
	return kv.Set(KeyIsGrouped, strconv.FormatBool(preferences.IsGrouped))
}

func loadBool(kv KeyValueStore, key string) (bool, bool, error) {
	raw, ok, err := kv.Get(key)
	if err != nil || !ok {
		return false, false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		glog.Infof("[prefs]ignore %s=%q\n", key, raw)
		return false, false, nil
	}
	return v, true, nil
}
