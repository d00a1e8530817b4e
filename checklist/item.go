package checklist

// item state is always derived from `IsChecked`
type ItemState string

const (
	ItemStateOpen      ItemState = "open"
	ItemStateCompleted ItemState = "completed"
)

func ItemStateOf(isChecked bool) ItemState {
	if isChecked {
		return ItemStateCompleted
	}
	return ItemStateOpen
}

// toggle state machine per item is:
// ToggleStateOpen
//
//	-> ToggleStatePrechecked (toggle, commit pending)
//	  -> ToggleStateCompleted (commit)
//	  -> ToggleStateOpen (toggle again before commit)
//
// ToggleStateCompleted
//
//	-> ToggleStatePrechecked (toggle, uncheck pending)
//	  -> ToggleStateOpen (commit)
//	  -> ToggleStateCompleted (toggle again before commit)
type ToggleState string

const (
	ToggleStateOpen       ToggleState = "open"
	ToggleStatePrechecked ToggleState = "prechecked"
	ToggleStateCompleted  ToggleState = "completed"
)

// `model.Item` as served by the list api
type Item struct {
	Uid       string `json:"uid"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	IsChecked bool   `json:"is_checked"`

	// set while an optimistic toggle is waiting for its commit
	IsPrechecked bool `json:"-"`
}

func (self *Item) State() ItemState {
	return ItemStateOf(self.IsChecked)
}

func (self *Item) ToggleState() ToggleState {
	if self.IsPrechecked {
		return ToggleStatePrechecked
	}
	if self.IsChecked {
		return ToggleStateCompleted
	}
	return ToggleStateOpen
}
