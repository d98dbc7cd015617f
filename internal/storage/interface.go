// Package storage defines interfaces and implementations for run recorders.
package storage

import (
	"context"
	"sync"

	"github.com/chrissnell/snowrecorder/internal/session"
)

// StorageEngineInterface is an interface that provides a few standardized
// methods for various run recorders
type StorageEngineInterface interface {
	StartStorageEngine(context.Context, *sync.WaitGroup) chan<- session.Event
}
