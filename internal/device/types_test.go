package device

import (
	"errors"
	"testing"
)

func TestCategoryFromIcon(t *testing.T) {
	tests := []struct {
		icon string
		want Category
	}{
		{"audio-card", CategoryHeadphones},
		{"audio-headset", CategoryHeadphones},
		{"input-keyboard", CategoryKeyboard},
		{"input-mouse", CategoryMouse},
		{"input-tablet", CategoryTablet},
		{"phone", CategoryPhone},
		{"computer", CategoryComputer},
		{"camera-photo", CategoryCameraPhoto},
		{"camera-video", CategoryCameraVideo},
		{"input-gaming", CategoryGeneric},
		{"", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.icon, func(t *testing.T) {
			if got := CategoryFromIcon(tt.icon); got != tt.want {
				t.Errorf("CategoryFromIcon(%q) = %q, want %q", tt.icon, got, tt.want)
			}
		})
	}
}

func TestNewRecord_Defaults(t *testing.T) {
	r := NewRecord("AA:BB:CC:DD:EE:FF", "", "", false, false)

	if r.Name != UnknownName {
		t.Errorf("Name = %q, want %q", r.Name, UnknownName)
	}
	if r.Category != CategoryGeneric {
		t.Errorf("Category = %q, want %q", r.Category, CategoryGeneric)
	}
}

func TestNewRecord_Fields(t *testing.T) {
	r := NewRecord("AA:BB:CC:DD:EE:FF", "Buds", "audio-headset", true, true)

	want := Record{
		ID:        "AA:BB:CC:DD:EE:FF",
		Name:      "Buds",
		Category:  CategoryHeadphones,
		Connected: true,
		Paired:    true,
	}
	if r != want {
		t.Errorf("NewRecord() = %+v, want %+v", r, want)
	}
}

func TestParseCommandKind(t *testing.T) {
	for _, k := range AllCommandKinds() {
		got, err := ParseCommandKind(string(k))
		if err != nil {
			t.Errorf("ParseCommandKind(%q) error = %v", k, err)
		}
		if got != k {
			t.Errorf("ParseCommandKind(%q) = %q", k, got)
		}
	}

	if _, err := ParseCommandKind("forget"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("ParseCommandKind(forget) error = %v, want ErrUnknownCommand", err)
	}
}
