/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package logger

import (
	"github.com/pickme-go/log/v2"
)

// DefaultLogger is used by components that were not handed a logger.
var DefaultLogger = log.NewLog(
	log.FileDepth(2),
	log.WithLevel(log.INFO),
	log.WithColors(false),
).Log(log.Prefixed(`k-join`))

// Named returns a child of l (or DefaultLogger when l is nil) prefixed with name.
func Named(l log.Logger, name string) log.Logger {
	if l == nil {
		l = DefaultLogger
	}

	return l.NewLog(log.Prefixed(name))
}
