package persistence

import (
	"sync/atomic"

	"gorm.io/gorm"
)

// QueryCounter is a GORM plugin that counts executed statements. Billing
// generation promises a bounded number of queries regardless of meter count;
// tests register the counter and assert on it.
type QueryCounter struct {
	count int64
}

// NewQueryCounter creates a new QueryCounter
func NewQueryCounter() *QueryCounter {
	return &QueryCounter{}
}

// Name implements gorm.Plugin
func (c *QueryCounter) Name() string {
	return "query_counter"
}

// Initialize implements gorm.Plugin, registering after-callbacks on every
// statement kind
func (c *QueryCounter) Initialize(db *gorm.DB) error {
	increment := func(*gorm.DB) { atomic.AddInt64(&c.count, 1) }

	if err := db.Callback().Query().After("gorm:query").Register("query_counter:query", increment); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("query_counter:create", increment); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("query_counter:update", increment); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("query_counter:delete", increment); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("query_counter:row", increment); err != nil {
		return err
	}
	return db.Callback().Raw().After("gorm:raw").Register("query_counter:raw", increment)
}

// Count returns the number of statements executed since the last reset
func (c *QueryCounter) Count() int64 {
	return atomic.LoadInt64(&c.count)
}

// Reset zeroes the counter
func (c *QueryCounter) Reset() {
	atomic.StoreInt64(&c.count, 0)
}
