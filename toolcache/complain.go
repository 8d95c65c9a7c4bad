package toolcache

import (
	"sync"

	"gopkg.in/op/go-logging.v1"
)

// Complainer logs permanent environment problems once.
// The set of emitted messages only grows; it lives as long as the owner.
type Complainer struct {
	log *logging.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewComplainer creates a Complainer logging through logger. A nil logger
// uses this package's logger.
func NewComplainer(logger *logging.Logger) *Complainer {
	if logger == nil {
		logger = log
	}
	return &Complainer{
		log:  logger,
		seen: make(map[string]struct{}),
	}
}

// Complain logs msg at error level the first time it is seen and reports
// whether it was logged.
func (c *Complainer) Complain(msg string) bool {
	if !c.first(msg) {
		return false
	}
	c.log.Error(msg)
	return true
}

// Warn is Complain at warning level.
func (c *Complainer) Warn(msg string) bool {
	if !c.first(msg) {
		return false
	}
	c.log.Warning(msg)
	return true
}

// Seen reports whether msg has already been emitted.
func (c *Complainer) Seen(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[msg]
	return ok
}

func (c *Complainer) first(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[msg]; ok {
		return false
	}
	c.seen[msg] = struct{}{}
	return true
}
