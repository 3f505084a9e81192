package embedding

import (
	"context"
	"time"
)

// Instrumented wraps an Embedder with input and output checks and
// latency recording.
type Instrumented struct {
	inner Embedder
	stats *Stats
}

// Instrument wraps e. stats may be nil.
func Instrument(e Embedder, stats *Stats) *Instrumented {
	if in, ok := e.(*Instrumented); ok {
		e = in.inner
	}
	return &Instrumented{inner: e, stats: stats}
}

func (i *Instrumented) Name() string { return i.inner.Name() }

// Prepare forwards to the wrapped embedder when it needs preparing.
func (i *Instrumented) Prepare(ctx context.Context, corpus []string) error {
	if p, ok := i.inner.(Preparer); ok {
		return p.Prepare(ctx, corpus)
	}
	return nil
}

func (i *Instrumented) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := CheckText(text); err != nil {
		return nil, err
	}
	start := time.Now()
	vec, err := i.inner.Embed(ctx, text)
	if err == nil {
		err = CheckVector(vec)
	}
	if i.stats != nil {
		i.stats.Record(time.Since(start).Milliseconds(), err != nil)
	}
	if err != nil {
		return nil, err
	}
	return vec, nil
}
