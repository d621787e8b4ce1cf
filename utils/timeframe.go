package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const Day = 24 * time.Hour

var timeframeDefs = []Timeframe{
	{"Sec", time.Second},
	{"Min", time.Minute},
	{"H", time.Hour},
	{"D", Day},
}

// Timeframe is a candle period, used as a storage's disambiguating
// argument and as a partition subdirectory name. e.g. "5Min", "1H".
type Timeframe struct {
	String   string
	Duration time.Duration
}

// TimeframeFromString parses strings like "1Min", "15Min", "4H", "1D".
// Returns nil when the string is not a valid timeframe.
func TimeframeFromString(tf string) *Timeframe {
	for _, def := range timeframeDefs {
		if strings.Contains(tf, def.String) {
			t, err := strconv.ParseInt(strings.Split(tf, def.String)[0], 10, 32)
			if err != nil || t <= 0 {
				return nil
			}
			return &Timeframe{
				String:   tf,
				Duration: def.Duration * time.Duration(t),
			}
		}
	}
	return nil
}

// TimeframeFromDuration formats a duration as the shortest matching
// timeframe string. Returns nil for sub-second durations.
func TimeframeFromDuration(dur time.Duration) *Timeframe {
	if dur < time.Second {
		return nil
	}
	for i := len(timeframeDefs) - 1; i >= 0; i-- {
		def := timeframeDefs[i]
		if dur%def.Duration == 0 {
			return &Timeframe{
				String:   fmt.Sprintf("%d%s", dur/def.Duration, def.String),
				Duration: dur,
			}
		}
	}
	return nil
}
