// Package cluster exposes the distributed coordination hooks the VFS layer
// may use when it runs on more than one node.
package cluster

import (
	"context"
	"sync"
)

// MessageHandler receives cluster messages addressed to this node.
type MessageHandler interface {
	HandleMessage(ctx context.Context, messageType string, content map[string]string)
}

// Service is a cluster-wide critical section.
type Service interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Dispose()
}

// ServiceFactory builds cluster services bound to a message handler.
type ServiceFactory interface {
	Build(handler MessageHandler) Service
}

// FactoryProducer resolves the cluster service factory once and hands out
// the same instance afterwards. A nil factory means clustering is not
// available.
type FactoryProducer struct {
	build   func() ServiceFactory
	once    sync.Once
	factory ServiceFactory
	service Service
}

// NewFactoryProducer creates a producer around build. A nil build function
// behaves like one that returns no factory.
func NewFactoryProducer(build func() ServiceFactory) *FactoryProducer {
	return &FactoryProducer{build: build}
}

// Factory returns the cluster service factory, building it on first use.
// A freshly built factory is initialized with Build(nil) before it is returned.
func (p *FactoryProducer) Factory() ServiceFactory {
	p.resolve()
	return p.factory
}

// Service returns the service built by the initializing Build(nil) call, or
// nil when no factory is available.
func (p *FactoryProducer) Service() Service {
	p.resolve()
	return p.service
}

func (p *FactoryProducer) resolve() {
	p.once.Do(func() {
		if p.build == nil {
			return
		}
		p.factory = p.build()
		if p.factory != nil {
			p.service = p.factory.Build(nil)
		}
	})
}
