package prefs

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EnvPrefersDark overrides terminal background detection when set to a boolean.
const EnvPrefersDark = "WEATHERDASH_PREFERS_DARK"

// SystemPrefersDark asks the terminal for its background colour.
func SystemPrefersDark() bool {
	if v, ok := os.LookupEnv(EnvPrefersDark); ok {
		if dark, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return dark
		}
	}
	return lipgloss.HasDarkBackground()
}
