// internal/poller/cache.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tamzrod/modbus-labctl/internal/device"
)

var (
	// ErrNoValue means the metric has not been polled successfully yet.
	ErrNoValue = errors.New("poller: no value")
	// ErrStale means the cached value is older than the reader allows.
	ErrStale = errors.New("poller: stale value")
)

type sample struct {
	value float64
	at    time.Time
}

// Cache keeps the latest successful poll of every device.
// Safe for concurrent use.
type Cache struct {
	values *xsync.MapOf[string, sample]
	errs   *xsync.MapOf[string, error]
	now    func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		values: xsync.NewMapOf[string, sample](),
		errs:   xsync.NewMapOf[string, error](),
		now:    time.Now,
	}
}

func key(dev string, m device.Metric) string { return dev + "|" + string(m) }

// Update stores a poll result. A failed poll keeps the old values but marks
// the device as failing until the next successful poll.
func (c *Cache) Update(res PollResult) {
	if res.Err != nil {
		c.errs.Store(res.Device, res.Err)
		return
	}
	c.errs.Delete(res.Device)
	for m, v := range res.Values {
		c.values.Store(key(res.Device, m), sample{value: v, at: res.At})
	}
}

// Get returns the cached value. maxAge <= 0 disables the age check.
func (c *Cache) Get(dev string, m device.Metric, maxAge time.Duration) (float64, error) {
	if err, ok := c.errs.Load(dev); ok {
		return 0, err
	}
	s, ok := c.values.Load(key(dev, m))
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrNoValue, dev, m)
	}
	if maxAge > 0 {
		if age := c.now().Sub(s.at); age > maxAge {
			return 0, fmt.Errorf("%w: %s.%s is %s old", ErrStale, dev, m, age.Truncate(time.Millisecond))
		}
	}
	return s.value, nil
}

// Source returns an input port reading dev.m from the cache.
func (c *Cache) Source(dev string, m device.Metric, maxAge time.Duration) CachedSource {
	return CachedSource{cache: c, dev: dev, metric: m, maxAge: maxAge}
}

// CachedSource satisfies the controller's input port.
type CachedSource struct {
	cache  *Cache
	dev    string
	metric device.Metric
	maxAge time.Duration
}

func (s CachedSource) Read() (float64, error) {
	return s.cache.Get(s.dev, s.metric, s.maxAge)
}
