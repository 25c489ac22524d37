// Package streams keeps a conversation's published and subscribed streams
// in line with what the caller asked for.
package streams

import (
	"github.com/dkeye/voicestate/internal/core"
)

// Operation names reported to Metrics.
const (
	OpPublish     = "publish"
	OpReplace     = "replace"
	OpUnpublish   = "unpublish"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Metrics observes every SDK operation issued by this package.
type Metrics interface {
	ObserveOperation(op string, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, error) {}

// Slot is one position of the desired publication list. A nil *Slot is an empty position.
type Slot struct {
	Stream  core.Stream
	Options *core.PublishOptions
}

func (s *Slot) stream() core.Stream {
	if s == nil {
		return nil
	}
	return s.Stream
}

type settings struct {
	onError          func(error)
	metrics          Metrics
	subscribeOptions *core.SubscribeOptions
}

type Option func(*settings)

// WithErrorHandler routes remote-operation failures to fn instead of the warn log.
func WithErrorHandler(fn func(error)) Option {
	return func(s *settings) { s.onError = fn }
}

func WithMetrics(m Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSubscribeOptions is passed on every SubscribeToStream call.
func WithSubscribeOptions(o *core.SubscribeOptions) Option {
	return func(s *settings) { s.subscribeOptions = o }
}

func newSettings(opts []Option) settings {
	s := settings{metrics: noopMetrics{}}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func sameStream(a, b core.Stream) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID() == b.ID()
}
