package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines all styles used by the UI so we can swap palettes easily.
type Theme struct {
	Name string

	// List chrome
	HeaderStyle   lipgloss.Style
	SelectedStyle lipgloss.Style
	RunningStyle  lipgloss.Style
	StoppedStyle  lipgloss.Style

	// Status and banners
	TitleStyle  lipgloss.Style
	StatusStyle lipgloss.Style
	BannerStyle lipgloss.Style

	// Overlays
	PromptStyle  lipgloss.Style
	ConfirmStyle lipgloss.Style
	ToolbarStyle lipgloss.Style
}

func DarkTheme() *Theme {
	return &Theme{
		Name:          "dark",
		HeaderStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Bold(true).Underline(true),
		SelectedStyle: lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("15")).Bold(true),
		RunningStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("41")),
		StoppedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),

		TitleStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		StatusStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Italic(true),
		BannerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),

		PromptStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true),
		ConfirmStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		ToolbarStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

func DraculaTheme() *Theme {
	// Dracula palette-ish
	return &Theme{
		Name:          "dracula",
		HeaderStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true).Underline(true),
		SelectedStyle: lipgloss.NewStyle().Background(lipgloss.Color("60")).Foreground(lipgloss.Color("231")).Bold(true),
		RunningStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("84")),
		StoppedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),

		TitleStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true),
		StatusStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		BannerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("221")).Bold(true),

		PromptStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true),
		ConfirmStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true),
		ToolbarStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

func LightTheme() *Theme {
	return &Theme{
		Name:          "light",
		HeaderStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Bold(true).Underline(true),
		SelectedStyle: lipgloss.NewStyle().Background(lipgloss.Color("253")).Foreground(lipgloss.Color("0")).Bold(true),
		RunningStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		StoppedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("102")),

		TitleStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("27")).Bold(true),
		StatusStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("60")).Italic(true),
		BannerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("130")).Bold(true),

		PromptStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("27")).Bold(true),
		ConfirmStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
		ToolbarStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

var themes = []*Theme{DarkTheme(), DraculaTheme(), LightTheme()}

func themeByName(name string) *Theme {
	for _, t := range themes {
		if t.Name == name {
			return t
		}
	}
	return DarkTheme()
}

// SetTheme switches the palette by name, defaulting to dark.
func (m *Model) SetTheme(name string) {
	t := themeByName(name)
	for i, candidate := range themes {
		if candidate.Name == t.Name {
			m.themeIdx = i
		}
	}
	m.theme = t
}
