package cli

import (
	"context"
	"sync"
	"time"

	"github.com/ethosgate/ethosgate/internal/config"
	"github.com/ethosgate/ethosgate/internal/observability/logging"
	"github.com/ethosgate/ethosgate/internal/pipeline"
)

// gateSource serves pipelines for one config reference. The snapshot is
// published through a config.Holder; once its validity window has passed the
// reference is resolved again and the fresh snapshot swapped in.
type gateSource struct {
	ref    string
	now    func() time.Time
	log    logging.Logger
	holder *config.Holder

	mu   sync.Mutex
	pipe *pipeline.Pipeline
}

func newGateSource(ref string, now func() time.Time, log logging.Logger) (*gateSource, error) {
	if log == nil {
		log = logging.From(context.Background())
	}
	s := &gateSource{ref: ref, now: now, log: log, holder: config.NewHolder(nil)}
	if _, err := s.Pipeline(); err != nil {
		return nil, err
	}
	return s, nil
}

// Pipeline for the current snapshot, reloading it first when it has expired
func (s *gateSource) Pipeline() (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if snap, err := s.holder.Valid(now); err == nil && s.pipe != nil && s.pipe.Snapshot() == snap {
		return s.pipe, nil
	}

	snap, err := config.ResolveAt(s.ref, now.UTC())
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(snap, pipeline.WithClock(s.now))
	if err != nil {
		return nil, err
	}
	if prev := s.holder.Swap(snap); prev != nil {
		s.log.Info("config", "configuration reloaded",
			"config", snap.Name(),
			"source", snap.Source(),
			"expired_at", prev.ValidUntil().Format(time.RFC3339))
	}
	s.pipe = p
	return p, nil
}

// Snapshot currently published
func (s *gateSource) Snapshot() *config.Snapshot {
	return s.holder.Current()
}
