package websocket

// EventPublisher delivers events to the connections of one user
type EventPublisher interface {
	Publish(userID string, event Event)
}

var (
	_ EventPublisher = (*Hub)(nil)
	_ EventPublisher = NoOpPublisher{}
)

// NoOpPublisher discards events; used when realtime delivery is disabled
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(string, Event) {}
