package validator

import (
	"sync"

	"github.com/apetrovskiy/neon-evm/harness/evmlog"
	harnesserrors "github.com/apetrovskiy/neon-evm/harness/errors"
)

// Collector gathers validation failures so a caller can keep going past a
// mismatch and report every failure at the end.
type Collector struct {
	mu    sync.Mutex
	group *harnesserrors.ErrorGroup
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{group: harnesserrors.NewErrorGroup()}
}

// Add records err. Nil is ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.group.Add(err)
}

// Defer wraps check so that its failure is recorded under job and the
// wrapped check passes.
func (c *Collector) Defer(job string, check func(evmlog.Log) error) func(evmlog.Log) error {
	return func(l evmlog.Log) error {
		c.Add(harnesserrors.Wrapf(check(l), "job %s", job))
		return nil
	}
}

// Len returns the number of recorded failures.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.group.Errors)
}

// ErrOrNil returns the recorded failures as one error, or nil.
func (c *Collector) ErrOrNil() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.group.ErrOrNil()
}
