package ratelimiter

import (
	"time"
)

const (
	defaultDomainInterval = 200 * time.Millisecond
	queueSize             = 1000
)
