package checklist

import (
	"strings"
)

// the single category of an ungrouped view
const AllCategory = "all"

type ViewRow struct {
	Item Item
	// true for the first item of a category run in a grouped view
	ShowHeader bool
}

// a run of contiguous items in mirror order.
// a category that is not contiguous in the mirror produces more than one group
type ViewGroup struct {
	Category string
	Items    []Item
}

type View struct {
	Rows   []ViewRow
	Groups []ViewGroup
	// distinct categories of the rows in order, or `AllCategory` when not grouped
	Categories []string
	// a search is active and nothing matched
	SearchIsEmpty bool
	// every row is completed
	AllCompleted   bool
	CompletedCount int
}

// derives the view model from the mirror order. it does not sort
func BuildView(items []Item, preferences ViewPreferences) *View {
	search := strings.ToLower(preferences.SearchText)
	hideCompleted := preferences.EffectiveHideCompleted()

	filtered := []Item{}
	for _, item := range items {
		if search != "" && !strings.Contains(strings.ToLower(item.Name), search) {
			continue
		}
		if hideCompleted && item.State() == ItemStateCompleted {
			continue
		}
		filtered = append(filtered, item)
	}

	view := &View{
		Rows:       make([]ViewRow, 0, len(filtered)),
		Groups:     []ViewGroup{},
		Categories: []string{},
	}

	for i, item := range filtered {
		if item.IsChecked {
			view.CompletedCount += 1
		}

		if !preferences.IsGrouped {
			view.Rows = append(view.Rows, ViewRow{Item: item})
			continue
		}

		showHeader := i == 0 || item.Category != filtered[i-1].Category
		view.Rows = append(view.Rows, ViewRow{
			Item:       item,
			ShowHeader: showHeader,
		})
		if showHeader {
			view.Groups = append(view.Groups, ViewGroup{Category: item.Category})
		}
		group := &view.Groups[len(view.Groups)-1]
		group.Items = append(group.Items, item)
	}

	if preferences.IsGrouped {
		seen := map[string]bool{}
		for _, group := range view.Groups {
			if !seen[group.Category] {
				seen[group.Category] = true
				view.Categories = append(view.Categories, group.Category)
			}
		}
	} else {
		view.Categories = append(view.Categories, AllCategory)
		view.Groups = append(view.Groups, ViewGroup{
			Category: AllCategory,
			Items:    filtered,
		})
	}

	view.SearchIsEmpty = search != "" && len(filtered) == 0
	view.AllCompleted = view.CompletedCount == len(filtered)
	return view
}

const minSuggestLength = 2

// distinct categories of `items` containing `text`, case-insensitive, in mirror order
func SuggestCategories(items []Item, text string) []string {
	suggestions := []string{}
	if len(text) < minSuggestLength {
		return suggestions
	}
	search := strings.ToLower(text)
	seen := map[string]bool{}
	for _, item := range items {
		if seen[item.Category] {
			continue
		}
		seen[item.Category] = true
		if strings.Contains(strings.ToLower(item.Category), search) {
			suggestions = append(suggestions, item.Category)
		}
	}
	return suggestions
}
