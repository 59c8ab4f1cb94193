package ledger

import (
	"context"
	"errors"
	"fmt"

	"club-pos/internal/models"
)

type Sink interface {
	Append(ctx context.Context, record models.SaleRecord) error
}

// Named lets a sink report itself in errors and logs.
type Named interface {
	Name() string
}

type multiSink struct {
	sinks []Sink
}

// Multi appends to every sink in order and joins their errors. It returns nil
// when no sinks are given, so callers can test for "no ledger configured".
func Multi(sinks ...Sink) Sink {
	var active []Sink
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return &multiSink{sinks: active}
}

func (m *multiSink) Append(ctx context.Context, record models.SaleRecord) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Append(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(s, i), err))
		}
	}
	return errors.Join(errs...)
}

func sinkName(s Sink, i int) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("sink #%d", i+1)
}
