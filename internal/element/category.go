package element

import (
	"fmt"
	"strings"
)

// Category is the semantic role assigned to a page element. The set is closed:
// new labels are added here, never minted from strings at runtime.
type Category uint8

const (
	Unknown Category = iota
	Date
	Calendar
	Button
	Input
	Dropdown
	Checkbox
	Link
	Tab
	Navigation
	Modal
	Icon
	Image
	Text

	categoryCount
)

var categoryNames = [categoryCount]string{
	Unknown:    "UNKNOWN",
	Date:       "DATE",
	Calendar:   "CALENDAR",
	Button:     "BUTTON",
	Input:      "INPUT",
	Dropdown:   "DROPDOWN",
	Checkbox:   "CHECKBOX",
	Link:       "LINK",
	Tab:        "TAB",
	Navigation: "NAVIGATION",
	Modal:      "MODAL",
	Icon:       "ICON",
	Image:      "IMAGE",
	Text:       "TEXT",
}

// displayOrder is the order categories are presented to the planner.
var displayOrder = []Category{
	Date, Calendar, Input, Button, Dropdown, Tab, Link,
	Navigation, Checkbox, Modal, Image, Icon, Text, Unknown,
}

// Categories returns every category in display priority order.
func Categories() []Category {
	out := make([]Category, len(displayOrder))
	copy(out, displayOrder)
	return out
}

func (c Category) String() string {
	if c >= categoryCount {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is a member of the taxonomy.
func (c Category) Valid() bool { return c < categoryCount }

// ParseCategory resolves a wire name (case-insensitive) to a Category.
func ParseCategory(name string) (Category, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range categoryNames {
		if n == want {
			return Category(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown element category %q", name)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid element category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
