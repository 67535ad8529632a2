package concurrency

import (
	"fmt"
	"strings"
	"sync"
)

// ErrorCollector safely collects errors from concurrent operations, keyed by
// an item id and reported in the order they were first added.
type ErrorCollector struct {
	mu         sync.RWMutex
	errors     map[string]error
	errorOrder []string
	maxErrors  int
}

// NewErrorCollector creates a new error collector
func NewErrorCollector(maxErrors int) *ErrorCollector {
	if maxErrors <= 0 {
		maxErrors = 100
	}

	return &ErrorCollector{
		errors:     make(map[string]error),
		errorOrder: make([]string, 0),
		maxErrors:  maxErrors,
	}
}

// Add adds an error to the collector. Nil errors and repeated ids are ignored.
func (ec *ErrorCollector) Add(id string, err error) {
	if err == nil {
		return
	}

	ec.mu.Lock()
	defer ec.mu.Unlock()

	if len(ec.errors) >= ec.maxErrors {
		return
	}
	if _, exists := ec.errors[id]; !exists {
		ec.errors[id] = err
		ec.errorOrder = append(ec.errorOrder, id)
	}
}

// HasErrors returns true if any errors have been collected
func (ec *ErrorCollector) HasErrors() bool {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.errors) > 0
}

// Count returns the number of errors collected
func (ec *ErrorCollector) Count() int {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return len(ec.errors)
}

// Get returns the error recorded for id, if any.
func (ec *ErrorCollector) Get(id string) (error, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	err, ok := ec.errors[id]
	return err, ok
}

// IDs returns the ids with errors in insertion order.
func (ec *ErrorCollector) IDs() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return append([]string(nil), ec.errorOrder...)
}

// ToError converts the collector to a single error
func (ec *ErrorCollector) ToError() error {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	switch len(ec.errorOrder) {
	case 0:
		return nil
	case 1:
		id := ec.errorOrder[0]
		return fmt.Errorf("error processing %s: %w", id, ec.errors[id])
	}

	const maxDisplay = 5
	messages := make([]string, 0, maxDisplay+1)
	for i, id := range ec.errorOrder {
		if i == maxDisplay {
			messages = append(messages, fmt.Sprintf("... and %d more errors", len(ec.errorOrder)-maxDisplay))
			break
		}
		messages = append(messages, fmt.Sprintf("%s: %v", id, ec.errors[id]))
	}
	return fmt.Errorf("%d errors occurred:\n%s", len(ec.errorOrder), strings.Join(messages, "\n"))
}
