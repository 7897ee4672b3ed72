package ui

import "time"

// Log display limits.
const (
	// LogFetchLimit is the number of trailing log lines read per refresh.
	LogFetchLimit = 500
)

// Timing constants.
const (
	// DefaultUIInterval is how often the clock and followed logs refresh.
	DefaultUIInterval = 2 * time.Second
)

// chromeHeight is the rows taken by the header, tab bar and footer.
const chromeHeight = 4
