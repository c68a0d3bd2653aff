package rpc

// EarlyNotifications reports how many unknown subscription ids hold
// buffered notifications and how many notifications they hold.
func (c *Client) EarlyNotifications() (ids, notifications int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, queued := range c.early {
		notifications += len(queued)
	}
	return len(c.early), notifications
}
