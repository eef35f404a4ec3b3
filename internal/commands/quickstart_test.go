package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedviz/speedviz/internal/tui/recents"
)

func TestQuickStartAnonymous(t *testing.T) {
	app, buf := newCommandApp(t, newFakeAPI())

	_, err := runCommand(t, app, NewQuickStartCmd())
	require.NoError(t, err)

	env := decodeEnvelope(t, buf)
	assert.Contains(t, env.Summary, "anonymous, day aggregation")

	var resp QuickStartResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "anonymous", resp.Auth.Status)
	assert.Equal(t, app.Config.BaseURL, resp.Context.BaseURL)
	assert.Empty(t, resp.Context.RecentLocations)
	assert.Contains(t, resp.Commands.QuickStart, "speedviz location nauscaclaremont")

	var actions []string
	for _, b := range env.Breadcrumbs {
		actions = append(actions, b.Action)
	}
	assert.Contains(t, actions, "authenticate")
}

func TestQuickStartUsesRecentLocation(t *testing.T) {
	app, buf := newCommandApp(t, newFakeAPI())
	app.Recents.Add(recents.Item{ID: "nyc", Label: "New York", Type: recents.TypeLocation})
	require.NoError(t, app.Auth.Login("tok", ""))

	_, err := runCommand(t, app, NewQuickStartCmd())
	require.NoError(t, err)

	var resp QuickStartResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, buf).Data, &resp))
	assert.Equal(t, "authenticated", resp.Auth.Status)
	assert.Equal(t, "file", resp.Auth.Source)
	assert.Equal(t, []string{"nyc"}, resp.Context.RecentLocations)
	assert.Contains(t, resp.Commands.QuickStart, "speedviz location nyc")
}
