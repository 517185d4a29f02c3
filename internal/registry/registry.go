// Package registry drives the lifecycle of HydroSim plugins: registration,
// dependency ordering, init, start and stop.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/HerbHall/hydrosim/pkg/plugin"
	"go.uber.org/zap"
)

// Registry owns every registered plugin.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]plugin.Plugin
	infos    map[string]plugin.PluginInfo
	order    []string // dependency order after Validate
	disabled map[string]string
	logger   *zap.Logger
}

// Status describes one plugin for the plugins endpoint.
type Status struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Description    string   `json:"description"`
	Dependencies   []string `json:"dependencies,omitempty"`
	Required       bool     `json:"required"`
	Enabled        bool     `json:"enabled"`
	DisabledReason string   `json:"disabled_reason,omitempty"`
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]plugin.Plugin),
		infos:    make(map[string]plugin.PluginInfo),
		disabled: make(map[string]string),
		logger:   logger,
	}
}

// Register adds a plugin. Must be called before Validate.
func (r *Registry) Register(p plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := p.Info()
	if info.Name == "" {
		return errors.New("plugin has empty name")
	}
	if _, exists := r.plugins[info.Name]; exists {
		return fmt.Errorf("plugin %q already registered", info.Name)
	}
	r.plugins[info.Name] = p
	r.infos[info.Name] = info
	r.logger.Info("plugin registered",
		zap.String("name", info.Name),
		zap.String("version", info.Version),
		zap.Int("api_version", info.APIVersion),
	)
	return nil
}

// Validate checks API versions and dependencies, then computes the start
// order. Optional plugins that fail a check are disabled along with their
// dependents; a failing required plugin is an error.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.sortedNames() {
		info := r.infos[name]
		if err := checkAPIVersion(info); err != nil {
			if err := r.disable(name, err.Error()); err != nil {
				return err
			}
		}
	}

	// Repeat until no further plugin is disabled so a disabled dependency
	// propagates to every dependent.
	for changed := true; changed; {
		changed = false
		for _, name := range r.sortedNames() {
			if _, off := r.disabled[name]; off {
				continue
			}
			for _, dep := range r.infos[name].Dependencies {
				reason := ""
				if _, ok := r.plugins[dep]; !ok {
					reason = fmt.Sprintf("dependency %q is not registered", dep)
				} else if _, off := r.disabled[dep]; off {
					reason = fmt.Sprintf("dependency %q is disabled", dep)
				}
				if reason == "" {
					continue
				}
				if err := r.disable(name, reason); err != nil {
					return err
				}
				changed = true
				break
			}
		}
	}

	order, err := r.topologicalSort()
	if err != nil {
		return err
	}
	r.order = order
	r.logger.Info("plugin dependency resolution complete",
		zap.Strings("start_order", r.order),
		zap.Int("disabled", len(r.disabled)),
	)
	return nil
}

// InitAll initializes active plugins in dependency order. depsFn builds
// the dependencies for each plugin.
func (r *Registry) InitAll(ctx context.Context, depsFn func(name string) plugin.Dependencies) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		p := r.plugins[name]
		r.logger.Info("initializing plugin", zap.String("name", name))
		if err := p.Init(ctx, depsFn(name)); err != nil {
			if err := r.disable(name, "init failed: "+err.Error()); err != nil {
				return err
			}
			continue
		}
		if v, ok := p.(plugin.Validator); ok {
			if err := v.ValidateConfig(); err != nil {
				if err := r.disable(name, "invalid config: "+err.Error()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// StartAll starts initialized plugins in dependency order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		r.logger.Info("starting plugin", zap.String("name", name))
		if err := r.plugins[name].Start(ctx); err != nil {
			if err := r.disable(name, "start failed: "+err.Error()); err != nil {
				return err
			}
		}
	}
	return nil
}

// StopAll stops active plugins in reverse dependency order.
func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		if _, off := r.disabled[name]; off {
			continue
		}
		r.logger.Info("stopping plugin", zap.String("name", name))
		if err := r.plugins[name].Stop(ctx); err != nil {
			r.logger.Error("failed to stop plugin", zap.String("name", name), zap.Error(err))
		}
	}
}

// Get returns an active plugin by name.
func (r *Registry) Get(name string) (plugin.Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, off := r.disabled[name]; off {
		return nil, false
	}
	p, ok := r.plugins[name]
	return p, ok
}

// AllRoutes returns HTTP routes of active plugins keyed by plugin name.
func (r *Registry) AllRoutes() map[string][]plugin.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string][]plugin.Route)
	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			continue
		}
		if hp, ok := r.plugins[name].(plugin.HTTPProvider); ok {
			if pr := hp.Routes(); len(pr) > 0 {
				routes[name] = pr
			}
		}
	}
	return routes
}

// Health collects reports from active plugins that implement
// plugin.HealthChecker.
func (r *Registry) Health(ctx context.Context) map[string]plugin.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]plugin.HealthStatus)
	for _, name := range r.order {
		if _, off := r.disabled[name]; off {
			out[name] = plugin.HealthStatus{Status: "disabled", Message: r.disabled[name]}
			continue
		}
		if hc, ok := r.plugins[name].(plugin.HealthChecker); ok {
			out[name] = hc.Health(ctx)
		}
	}
	return out
}

// Statuses lists every registered plugin sorted by name.
func (r *Registry) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.infos))
	for _, name := range r.sortedNames() {
		info := r.infos[name]
		reason, off := r.disabled[name]
		out = append(out, Status{
			Name:           name,
			Version:        info.Version,
			Description:    info.Description,
			Dependencies:   info.Dependencies,
			Required:       info.Required,
			Enabled:        !off,
			DisabledReason: reason,
		})
	}
	return out
}

// Disable turns off a registered plugin before Validate, for example when
// configuration sets plugins.<name>.enabled to false. Required plugins
// cannot be disabled.
func (r *Registry) Disable(name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; !ok {
		return fmt.Errorf("plugin %q is not registered", name)
	}
	return r.disable(name, reason)
}

// IsDisabled reports whether a plugin has been disabled.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, off := r.disabled[name]
	return off
}

// disable marks an optional plugin disabled. For a required plugin it
// returns the reason as an error instead. Callers hold the write lock.
func (r *Registry) disable(name, reason string) error {
	if r.infos[name].Required {
		return fmt.Errorf("required plugin %q: %s", name, reason)
	}
	r.logger.Warn("disabling plugin", zap.String("name", name), zap.String("reason", reason))
	r.disabled[name] = reason
	return nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkAPIVersion(info plugin.PluginInfo) error {
	if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
		return fmt.Errorf("plugin API v%d is outside the supported range v%d..v%d",
			info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
	}
	return nil
}

// topologicalSort orders active plugins so dependencies come first, with
// ties broken by name.
func (r *Registry) topologicalSort() ([]string, error) {
	inDegree := make(map[string]int)
	dependents := make(map[string][]string)
	var active []string
	for _, name := range r.sortedNames() {
		if _, off := r.disabled[name]; !off {
			active = append(active, name)
			inDegree[name] = 0
		}
	}
	for _, name := range active {
		for _, dep := range r.infos[name].Dependencies {
			if _, ok := inDegree[dep]; ok {
				inDegree[name]++
				dependents[dep] = append(dependents[dep], name)
			}
		}
	}

	var ready []string
	for _, name := range active {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	order := make([]string, 0, len(active))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, d := range dependents[name] {
			inDegree[d]--
			if inDegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(order) != len(active) {
		var cycled []string
		for _, name := range active {
			if inDegree[name] > 0 {
				cycled = append(cycled, name)
			}
		}
		return nil, fmt.Errorf("dependency cycle detected among plugins: %v", cycled)
	}
	return order, nil
}
