package composer

import (
	"context"
	"sync"

	"backoffice/internal/gateway"
	"backoffice/internal/model"

	"github.com/rs/zerolog/log"
)

// ReferenceSource loads the option lists a form depends on.
type ReferenceSource interface {
	Accounts(ctx context.Context, personnel model.PersonnelType) ([]model.Option, error)
	Projects(ctx context.Context) ([]model.Option, error)
	Responsibles(ctx context.Context, project string) ([]model.Option, error)
	Transports(ctx context.Context, project string) ([]model.Option, error)
}

// Loading flags drive disabled and spinner states in the UI.
type Loading struct {
	Accounts     bool `json:"accounts"`
	Projects     bool `json:"projects"`
	Responsibles bool `json:"responsibles"`
	Transports   bool `json:"transports"`
	Submit       bool `json:"submit"`
}

// Options are the currently loaded choices of each dependent control.
type Options struct {
	Accounts     []model.Option `json:"accounts"`
	Projects     []model.Option `json:"projects"`
	Responsibles []model.Option `json:"responsibles"`
	Transports   []model.Option `json:"transports"`
}

type slot struct {
	gen     uint64
	loading bool
	opts    []model.Option
	err     string
}

// deps runs dependent option fetches. Each resource has a generation; a
// response is applied only if no newer fetch or clear happened since it was
// issued.
type deps struct {
	mu      *sync.Mutex
	wg      sync.WaitGroup
	slots   map[model.ReferenceResource]*slot
	changed func()
}

func newDeps(mu *sync.Mutex, changed func()) *deps {
	d := &deps{mu: mu, slots: make(map[model.ReferenceResource]*slot), changed: changed}
	for _, r := range []model.ReferenceResource{model.RefAccounts, model.RefProjects, model.RefResponsibles, model.RefTransports} {
		d.slots[r] = &slot{}
	}
	return d
}

// clearLocked empties a slot and invalidates any fetch in flight. d.mu must
// be held.
func (d *deps) clearLocked(res model.ReferenceResource) {
	s := d.slots[res]
	s.gen++
	s.loading = false
	s.opts = nil
	s.err = ""
}

// fetchLocked starts loading res. d.mu must be held; the load runs without
// it.
func (d *deps) fetchLocked(ctx context.Context, res model.ReferenceResource, load func(context.Context) ([]model.Option, error)) {
	d.clearLocked(res)
	s := d.slots[res]
	s.loading = true
	gen := s.gen
	bg := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		opts, err := load(bg)

		d.mu.Lock()
		if s.gen != gen {
			d.mu.Unlock()
			log.Debug().Str("resource", string(res)).Msg("discarding stale reference response")
			return
		}
		s.loading = false
		if err != nil {
			s.err = gateway.UserMessage(err)
			log.Warn().Err(err).Str("resource", string(res)).Msg("reference fetch failed")
		} else {
			s.opts = opts
		}
		d.mu.Unlock()
		d.changed()
	}()
}

func (d *deps) wait() { d.wg.Wait() }

// snapshotLocked copies the option lists and flags. d.mu must be held.
func (d *deps) snapshotLocked() (Options, Loading, map[string]string) {
	opts := Options{
		Accounts:     cloneOpts(d.slots[model.RefAccounts].opts),
		Projects:     cloneOpts(d.slots[model.RefProjects].opts),
		Responsibles: cloneOpts(d.slots[model.RefResponsibles].opts),
		Transports:   cloneOpts(d.slots[model.RefTransports].opts),
	}
	loading := Loading{
		Accounts:     d.slots[model.RefAccounts].loading,
		Projects:     d.slots[model.RefProjects].loading,
		Responsibles: d.slots[model.RefResponsibles].loading,
		Transports:   d.slots[model.RefTransports].loading,
	}
	var errs map[string]string
	for res, s := range d.slots {
		if s.err != "" {
			if errs == nil {
				errs = make(map[string]string)
			}
			errs[string(res)] = s.err
		}
	}
	return opts, loading, errs
}

func (d *deps) optionsLocked(res model.ReferenceResource) []model.Option {
	return d.slots[res].opts
}

func cloneOpts(in []model.Option) []model.Option {
	if in == nil {
		return []model.Option{}
	}
	out := make([]model.Option, len(in))
	copy(out, in)
	return out
}
