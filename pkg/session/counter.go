package session

// InitialCounter is the value of both counters right after authentication.
const InitialCounter uint32 = 1

// Counter is a per-session message counter. The outgoing side hands out
// consecutive values; the incoming side accepts exactly the next value.
// Callers serialize access.
type Counter struct {
	value     uint32
	exhausted bool
}

// NewCounter creates a counter starting at InitialCounter.
func NewCounter() *Counter {
	return &Counter{value: InitialCounter}
}

// NewCounterWithValue creates a counter with a specific initial value.
// Used for testing.
func NewCounterWithValue(initial uint32) *Counter {
	return &Counter{value: initial}
}

// Next returns the next counter value.
// Returns ErrCounterExhausted if the counter has wrapped.
func (c *Counter) Next() (uint32, error) {
	if c.exhausted {
		return 0, ErrCounterExhausted
	}

	current := c.value
	c.value++
	if c.value == 0 {
		c.exhausted = true
	}
	return current, nil
}

// Value returns the next value without consuming it.
func (c *Counter) Value() uint32 {
	return c.value
}

// Accept consumes v if it is exactly the expected value.
func (c *Counter) Accept(v uint32) bool {
	if c.exhausted || v != c.value {
		return false
	}
	_, _ = c.Next()
	return true
}

// IsExhausted returns true if the counter has wrapped.
func (c *Counter) IsExhausted() bool {
	return c.exhausted
}
