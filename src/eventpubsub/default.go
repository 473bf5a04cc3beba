package eventpubsub

import (
	"fmt"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

type Publisher struct {
	bus EventBus.Bus
}

func NewPublisher() *Publisher {
	return &Publisher{
		bus: EventBus.New(),
	}
}

func (p *Publisher) Publish(topic string, event interface{}) {
	if !p.bus.HasCallback(topic) {
		return
	}

	p.bus.Publish(topic, event)
}

// Subscribe registers an asynchronous, serialized handler for a topic.
func (p *Publisher) Subscribe(topic string, callbackFn interface{}) error {
	if err := p.bus.SubscribeAsync(topic, callbackFn, true); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	log.Debugf("Subscribed to topic %s", topic)
	return nil
}

func (p *Publisher) Unsubscribe(topic string, callbackFn interface{}) error {
	return p.bus.Unsubscribe(topic, callbackFn)
}

// WaitAsync blocks until queued asynchronous handlers have run.
func (p *Publisher) WaitAsync() {
	p.bus.WaitAsync()
}
