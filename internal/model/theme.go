package model

import "fmt"

// Theme selects one of the design files shipped with the renderer.
type Theme string

const (
	ThemeEngineeringClassic Theme = "engineeringClassic"
	ThemeClassicDesign      Theme = "classicDesign"
	ThemeEngineeringDesign  Theme = "engineeringDesign"
	ThemeModernDesign       Theme = "modernDesign"
	ThemeSB2NovDesign       Theme = "sb2novDesign"

	DefaultTheme = ThemeEngineeringClassic
)

// ThemeInfo describes a theme for pickers.
type ThemeInfo struct {
	Value    Theme  `json:"value"`
	Label    string `json:"label"`
	Filename string `json:"filename"`
}

var themes = []ThemeInfo{
	{ThemeEngineeringClassic, "Engineering Classic", "engineeringClassic.yaml"},
	{ThemeClassicDesign, "Classic Design", "classicDesign.yaml"},
	{ThemeEngineeringDesign, "Engineering Design", "engineeringDesign.yaml"},
	{ThemeModernDesign, "Modern Design", "modernDesign.yaml"},
	{ThemeSB2NovDesign, "SB2Nov Design", "sb2novDesign.yaml"},
}

// Themes returns the theme catalogue in display order.
func Themes() []ThemeInfo {
	return append([]ThemeInfo(nil), themes...)
}

// ParseTheme accepts only catalogued identifiers.
func ParseTheme(s string) (Theme, error) {
	for _, t := range themes {
		if string(t.Value) == s {
			return t.Value, nil
		}
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Info returns the catalogue entry; unknown themes get the default's entry.
func (t Theme) Info() ThemeInfo {
	for _, info := range themes {
		if info.Value == t {
			return info
		}
	}
	return themes[0]
}

// Filename is the design file name inside the designs directory.
func (t Theme) Filename() string { return t.Info().Filename }

// OrDefault maps the zero theme to DefaultTheme.
func (t Theme) OrDefault() Theme {
	if t == "" {
		return DefaultTheme
	}
	return t
}
