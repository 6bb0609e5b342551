package types

import "sync"

// rwmu is a plain sync.RWMutex alias, kept as a named type so the
// containers in this package read with a named mutex field rather than
// an anonymous embed.
type rwmu = sync.RWMutex

// Optional is a tri-state wrapper distinguishing "not configured" from
// "configured with the zero value", used by config.Config for the
// optional replicaof setting.
type Optional[T any] interface {
	Get() T
}

type some[T any] struct{ value T }

func NewSome[T any](value T) Optional[T] { return &some[T]{value: value} }

func (s *some[T]) Get() T { return s.value }
