// timestamp.go: cached timestamp source for log lines
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package timestamp wraps go-timecache to avoid a time.Now syscall on
// every log line: the event loop's source-read iteration runs far more
// often than the clock actually needs updating.
package timestamp

import (
	"time"

	timecache "github.com/agilira/go-timecache"
)

// Now returns a cached, periodically-refreshed clock reading suitable for
// log-line timestamps on the event loop's hot path.
func Now() time.Time {
	return timecache.CachedTime()
}
