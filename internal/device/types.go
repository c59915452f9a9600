package device

import "fmt"

// UnknownName is the display name used when BlueZ reports none.
const UnknownName = "Unknown Device"

// Record is an immutable snapshot of one peripheral at enumeration time.
//
// Records are passed by value. Nothing in this module mutates a Record after
// NewRecord returns it.
type Record struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Connected bool     `json:"connected"`
	Paired    bool     `json:"paired"`
}

// NewRecord builds a Record, applying the display defaults for missing data.
// An empty name becomes UnknownName and the icon is mapped to a Category.
func NewRecord(id, name, icon string, connected, paired bool) Record {
	if name == "" {
		name = UnknownName
	}
	return Record{
		ID:        id,
		Name:      name,
		Category:  CategoryFromIcon(icon),
		Connected: connected,
		Paired:    paired,
	}
}

// String implements fmt.Stringer for log output.
func (r Record) String() string {
	return fmt.Sprintf("%s (%s) connected=%t paired=%t", r.Name, r.ID, r.Connected, r.Paired)
}

// Category is the device class used to pick a display icon.
type Category string

// Categories recognised by the presentation adapters.
const (
	CategoryHeadphones  Category = "audio-headphones"
	CategoryKeyboard    Category = "input-keyboard"
	CategoryMouse       Category = "input-mouse"
	CategoryTablet      Category = "input-tablet"
	CategoryPhone       Category = "phone"
	CategoryComputer    Category = "computer"
	CategoryCameraPhoto Category = "camera-photo"
	CategoryCameraVideo Category = "camera-video"
	CategoryGeneric     Category = "bluetooth"
)

// iconCategories maps BlueZ Icon property values to categories.
// Headsets and sound cards share the headphones icon.
var iconCategories = map[string]Category{
	"audio-card":     CategoryHeadphones,
	"audio-headset":  CategoryHeadphones,
	"input-keyboard": CategoryKeyboard,
	"input-mouse":    CategoryMouse,
	"input-tablet":   CategoryTablet,
	"phone":          CategoryPhone,
	"computer":       CategoryComputer,
	"camera-photo":   CategoryCameraPhoto,
	"camera-video":   CategoryCameraVideo,
}

// CategoryFromIcon maps a BlueZ Icon value to a Category.
// Unknown or empty values fall back to CategoryGeneric.
func CategoryFromIcon(icon string) Category {
	if c, ok := iconCategories[icon]; ok {
		return c
	}
	return CategoryGeneric
}

// Glyph returns a single-cell symbol for terminal rendering.
func (c Category) Glyph() string {
	switch c {
	case CategoryHeadphones:
		return "♫"
	case CategoryKeyboard:
		return "⌨"
	case CategoryMouse, CategoryTablet:
		return "◎"
	case CategoryPhone:
		return "☏"
	case CategoryComputer:
		return "▣"
	case CategoryCameraPhoto, CategoryCameraVideo:
		return "◉"
	default:
		return "ᛒ"
	}
}

// CommandKind identifies a per-device mutating command.
type CommandKind string

// Per-device commands accepted by the coordinator.
const (
	CommandConnect    CommandKind = "connect"
	CommandDisconnect CommandKind = "disconnect"
	CommandPair       CommandKind = "pair"
)

// AllCommandKinds returns every per-device command kind.
func AllCommandKinds() []CommandKind {
	return []CommandKind{CommandConnect, CommandDisconnect, CommandPair}
}

// ParseCommandKind converts a string into a CommandKind.
func ParseCommandKind(s string) (CommandKind, error) {
	for _, k := range AllCommandKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}
