package plugins_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/NeuralTrust/TrustShield/pkg/pluginiface"
	"github.com/NeuralTrust/TrustShield/pkg/plugins"
	"github.com/NeuralTrust/TrustShield/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	name     string
	stages   []types.Stage
	calls    *[]string
	err      error
	panics   bool
	response *types.PluginResponse
	observed *[]string
}

func (f *fakePlugin) Name() string          { return f.name }
func (f *fakePlugin) Stages() []types.Stage { return f.stages }

func (f *fakePlugin) Execute(
	_ context.Context,
	_ types.Stage,
	_ *types.RequestContext,
	_ *types.ResponseContext,
) (*types.PluginResponse, error) {
	*f.calls = append(*f.calls, f.name)
	if f.panics {
		panic("boom")
	}
	return f.response, f.err
}

type fakeObserver struct {
	fakePlugin
}

func (f *fakeObserver) Observe(_ context.Context, _ *types.RequestContext) {
	*f.observed = append(*f.observed, f.name)
}

func newManager(t *testing.T, ps ...pluginiface.Plugin) plugins.Manager {
	t.Helper()
	m := plugins.NewManager(logrus.New())
	for _, p := range ps {
		require.NoError(t, m.RegisterPlugin(p))
	}
	return m
}

func pre(name string, calls *[]string) *fakePlugin {
	return &fakePlugin{name: name, stages: []types.Stage{types.PreRequest}, calls: calls}
}

func TestManager_RunsInPipelineOrder(t *testing.T) {
	var calls []string
	m := newManager(t,
		pre(plugins.RateLimiter, &calls),
		pre(plugins.IPBlocklist, &calls),
		pre(plugins.GlobalAttack, &calls),
		pre(plugins.ThreatScanner, &calls),
	)

	_, err := m.ExecuteStage(context.Background(), types.PreRequest, &types.RequestContext{}, types.NewResponseContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{
		plugins.IPBlocklist,
		plugins.ThreatScanner,
		plugins.GlobalAttack,
		plugins.RateLimiter,
	}, calls)
}

func TestManager_DenialStopsChain(t *testing.T) {
	var calls []string
	blocker := pre(plugins.IPBlocklist, &calls)
	blocker.err = &types.PluginError{StatusCode: http.StatusForbidden, Message: "Access denied."}
	m := newManager(t, blocker, pre(plugins.RateLimiter, &calls))

	_, err := m.ExecuteStage(context.Background(), types.PreRequest, &types.RequestContext{}, types.NewResponseContext(context.Background()))
	var denial *types.PluginError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, plugins.IPBlocklist, denial.Plugin)
	assert.Equal(t, []string{plugins.IPBlocklist}, calls)
}

func TestManager_InternalErrorsFailOpen(t *testing.T) {
	var calls []string
	broken := pre(plugins.IPBlocklist, &calls)
	broken.err = errors.New("store down")
	panicking := pre(plugins.ThreatScanner, &calls)
	panicking.panics = true
	m := newManager(t, broken, panicking, pre(plugins.RateLimiter, &calls))

	_, err := m.ExecuteStage(context.Background(), types.PreRequest, &types.RequestContext{}, types.NewResponseContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{plugins.IPBlocklist, plugins.ThreatScanner, plugins.RateLimiter}, calls)
}

func TestManager_MergesResponses(t *testing.T) {
	var calls []string
	limiter := pre(plugins.RateLimiter, &calls)
	limiter.response = &types.PluginResponse{
		Headers:  map[string][]string{"X-RateLimit-Limit": {"50"}},
		Metadata: map[string]interface{}{"rate_limit": int64(50)},
	}
	m := newManager(t, limiter)

	resp, err := m.ExecuteStage(context.Background(), types.PreRequest, &types.RequestContext{}, types.NewResponseContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{"50"}, resp.Headers["X-RateLimit-Limit"])
	assert.Equal(t, int64(50), resp.Metadata["rate_limit"])
}

func TestManager_SecurityProfileSkipsDDoSStage(t *testing.T) {
	var calls []string
	m := newManager(t,
		pre(plugins.AnomalyDetector, &calls),
		pre(plugins.GlobalAttack, &calls),
		pre(plugins.RateLimiter, &calls),
	)
	require.NoError(t, m.SetProfile(plugins.ProfileSecurity))

	_, err := m.ExecuteStage(context.Background(), types.PreRequest, &types.RequestContext{}, types.NewResponseContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{plugins.RateLimiter}, calls)
}

func TestManager_ObserveProfileNeverDenies(t *testing.T) {
	var calls, observed []string
	scanner := &fakeObserver{fakePlugin: fakePlugin{
		name:     plugins.ThreatScanner,
		stages:   []types.Stage{types.PreRequest},
		calls:    &calls,
		observed: &observed,
		err:      &types.PluginError{StatusCode: http.StatusForbidden},
	}}
	m := newManager(t, scanner, pre(plugins.IPBlocklist, &calls))
	require.NoError(t, m.SetProfile(plugins.ProfileObserve))

	_, err := m.ExecuteStage(context.Background(), types.PreRequest, &types.RequestContext{}, types.NewResponseContext(context.Background()))
	require.NoError(t, err)
	assert.Empty(t, calls)
	assert.Equal(t, []string{plugins.ThreatScanner}, observed)
}

func TestManager_StageFiltering(t *testing.T) {
	var calls []string
	headers := &fakePlugin{name: plugins.SecurityHeaders, stages: []types.Stage{types.PostResponse}, calls: &calls}
	m := newManager(t, headers, pre(plugins.IPBlocklist, &calls))

	_, err := m.ExecuteStage(context.Background(), types.PostResponse, &types.RequestContext{}, types.NewResponseContext(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []string{plugins.SecurityHeaders}, calls)
}

func TestManager_RegisterAndProfiles(t *testing.T) {
	var calls []string
	m := newManager(t, pre(plugins.IPBlocklist, &calls))
	assert.Error(t, m.RegisterPlugin(pre(plugins.IPBlocklist, &calls)))
	assert.NotNil(t, m.GetPlugin(plugins.IPBlocklist))
	assert.Equal(t, plugins.ProfileDDoSProtection, m.Profile().Name)
	assert.ErrorIs(t, m.SetProfile("paranoid"), plugins.ErrUnknownProfile)
}
