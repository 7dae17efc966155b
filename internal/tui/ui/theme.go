package ui

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the colors of the wachat TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableHeaderBg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	CrumbActiveFg    tcell.Color
	CrumbActiveBg    tcell.Color
	CrumbInactiveFg  tcell.Color
	CrumbInactiveBg  tcell.Color
	MenuKeyColor     tcell.Color
	NumericKeyColor  tcell.Color
	TitleColor       tcell.Color
	CounterColor     tcell.Color

	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color

	PromptBorderColor tcell.Color

	// Hub connection states in the header.
	OnlineColor     tcell.Color
	ConnectingColor tcell.Color
	OfflineColor    tcell.Color
}

// DefaultTheme returns the dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorMediumSeaGreen,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorMediumSeaGreen,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorCadetBlue,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorMediumSeaGreen,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
		OnlineColor:       tcell.ColorGreen,
		ConnectingColor:   tcell.ColorYellow,
		OfflineColor:      tcell.ColorRed,
	}
}

var (
	colorNamesOnce sync.Once
	colorNames     map[tcell.Color]string
)

// colorName returns a tview color tag name for c. Colors with several
// names (gray and grey) always get the alphabetically first one.
func colorName(c tcell.Color) string {
	colorNamesOnce.Do(func() {
		names := make([]string, 0, len(tcell.ColorNames))
		for name := range tcell.ColorNames {
			names = append(names, name)
		}
		sort.Strings(names)
		colorNames = make(map[tcell.Color]string, len(names))
		for _, name := range names {
			if _, ok := colorNames[tcell.ColorNames[name]]; !ok {
				colorNames[tcell.ColorNames[name]] = name
			}
		}
	})
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

// ColorTag returns the tview color tag name for c.
func ColorTag(c tcell.Color) string {
	return colorName(c)
}
