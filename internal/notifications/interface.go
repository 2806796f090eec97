package notifications

// Notifier delivers signal, order and risk events to an external
// channel. Delivery internals are deliberately thin; the pipeline
// only depends on this interface.
type Notifier interface {
	// SendAlert sends an alert with the specified level and message.
	SendAlert(level, message string) error
}

// Noop discards everything.
type Noop struct{}

func (Noop) SendAlert(level, message string) error { return nil }
