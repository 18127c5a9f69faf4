package domain

// EventBus decouples the source channel from the relay workers.
type EventBus interface {
	Publish(ev Event)
	Subscribe() <-chan Event
	Close()
}
