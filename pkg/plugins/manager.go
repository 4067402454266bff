package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/NeuralTrust/TrustShield/pkg/infra/prometheus"
	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	ProfileDDoSProtection = "ddos_protection"
	ProfileSecurity       = "security"
	ProfileObserve        = "observe"
)

// Profile selects which plugins of the pipeline run. Observe-only profiles
// never deny: their pre_request plugins report through pluginiface.Observer.
type Profile struct {
	Name    string
	Plugins []string
	Enforce bool
}

var profiles = map[string]Profile{
	ProfileDDoSProtection: {
		Name:    ProfileDDoSProtection,
		Plugins: pipelineOrder,
		Enforce: true,
	},
	ProfileSecurity: {
		Name: ProfileSecurity,
		Plugins: []string{
			IPBlocklist,
			ThreatScanner,
			IPReputation,
			RateLimiter,
			SuspiciousRequest,
			SecurityHeaders,
		},
		Enforce: true,
	},
	ProfileObserve: {
		Name:    ProfileObserve,
		Plugins: []string{ThreatScanner, SecurityHeaders},
		Enforce: false,
	},
}

var ErrUnknownProfile = errors.New("unknown profile")

func LookupProfile(name string) (Profile, error) {
	if name == "" {
		name = ProfileDDoSProtection
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

//go:generate mockery --name=Manager --dir=. --output=../../mocks --filename=plugin_manager_mock.go --case=underscore --with-expecter
type Manager interface {
	RegisterPlugin(plugin pluginiface.Plugin) error
	GetPlugin(name string) pluginiface.Plugin
	SetProfile(name string) error
	Profile() Profile
	ExecuteStage(
		ctx context.Context,
		stage types.Stage,
		req *types.RequestContext,
		resp *types.ResponseContext,
	) (*types.ResponseContext, error)
}

type manager struct {
	mu      sync.RWMutex
	logger  *logrus.Logger
	plugins map[string]pluginiface.Plugin
	profile Profile
}

func NewManager(logger *logrus.Logger) Manager {
	return &manager{
		logger:  logger,
		plugins: make(map[string]pluginiface.Plugin),
		profile: profiles[ProfileDDoSProtection],
	}
}

func (m *manager) RegisterPlugin(plugin pluginiface.Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := plugin.Name()
	if _, exists := m.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	m.plugins[name] = plugin
	return nil
}

func (m *manager) GetPlugin(name string) pluginiface.Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plugins[name]
}

func (m *manager) SetProfile(name string) error {
	p, err := LookupProfile(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.profile = p
	m.mu.Unlock()
	m.logger.WithField("profile", p.Name).Info("shield profile selected")
	return nil
}

func (m *manager) Profile() Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile
}

func (m *manager) ExecuteStage(
	ctx context.Context,
	stage types.Stage,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (*types.ResponseContext, error) {
	m.mu.RLock()
	profile := m.profile
	chain := m.chain(profile, stage)
	m.mu.RUnlock()

	if !profile.Enforce && stage == types.PreRequest {
		for _, plugin := range chain {
			if observer, ok := plugin.(pluginiface.Observer); ok {
				m.observe(ctx, plugin.Name(), observer, req)
			}
		}
		return resp, nil
	}

	if err := m.executeSequential(ctx, chain, stage, req, resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// chain must be called with mu held.
func (m *manager) chain(profile Profile, stage types.Stage) []pluginiface.Plugin {
	enabled := make(map[string]bool, len(profile.Plugins))
	for _, name := range profile.Plugins {
		enabled[name] = true
	}
	var out []pluginiface.Plugin
	for _, name := range pipelineOrder {
		if !enabled[name] {
			continue
		}
		plugin, exists := m.plugins[name]
		if !exists {
			continue
		}
		for _, s := range plugin.Stages() {
			if s == stage {
				out = append(out, plugin)
				break
			}
		}
	}
	return out
}

func (m *manager) executeSequential(
	ctx context.Context,
	chain []pluginiface.Plugin,
	stage types.Stage,
	req *types.RequestContext,
	resp *types.ResponseContext,
) error {
	for _, plugin := range chain {
		pluginResp, err := m.execute(ctx, plugin, stage, req, resp)
		if err != nil {
			var denial *types.PluginError
			if errors.As(err, &denial) {
				if denial.Plugin == "" {
					denial.Plugin = plugin.Name()
				}
				if denial.StatusCode == 0 {
					denial.StatusCode = http.StatusForbidden
				}
				prometheus.DenialsTotal.WithLabelValues(
					denial.Plugin,
					strconv.Itoa(denial.StatusCode),
				).Inc()
				return denial
			}
			m.logger.WithFields(logrus.Fields{
				"plugin": plugin.Name(),
				"stage":  string(stage),
				"ip":     req.IP,
			}).WithError(err).Error("plugin failed, continuing")
			continue
		}
		if pluginResp != nil {
			if pluginResp.StatusCode != 0 {
				resp.StatusCode = pluginResp.StatusCode
			}
			for k, v := range pluginResp.Headers {
				resp.Headers[k] = v
			}
			for k, v := range pluginResp.Metadata {
				resp.Metadata[k] = v
			}
		}
	}
	return nil
}

func (m *manager) execute(
	ctx context.Context,
	plugin pluginiface.Plugin,
	stage types.Stage,
	req *types.RequestContext,
	resp *types.ResponseContext,
) (pluginResp *types.PluginResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", plugin.Name(), r)
			pluginResp = nil
		}
	}()
	return plugin.Execute(ctx, stage, req, resp)
}

func (m *manager) observe(ctx context.Context, name string, observer pluginiface.Observer, req *types.RequestContext) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithField("plugin", name).Errorf("observer panicked: %v", r)
		}
	}()
	observer.Observe(ctx, req)
}
