package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one post
origin:
  users:
    - {id: 1, name: Alice, handle: alice}
  posts:
    - {id: 10, author_id: 1, conversation_id: 10, text: hi, created_at: 2024-05-01T09:00:00Z}
flow:
  - op: post
    id: 10
    expect:
      posts: [10]
assertions:
  - type: stored_posts
    ids: [10]
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Len(t, scenario.Origin.Users, 1)
	assert.Len(t, scenario.Origin.Posts, 1)
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, OpPost, scenario.Flow[0].Op)
	assert.Equal(t, uint64(10), scenario.Flow[0].ID)
	assert.Equal(t, []uint64{10}, scenario.Flow[0].Expect.Posts)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertStoredPosts, scenario.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nflow:\n  - {op: post, id: 1}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nflow:\n  - {op: post, id: 1}\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			yaml:    "name: n\ndescription: d\nflow: []\n",
			wantErr: "flow list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: n\ndescription: d\nflow:\n  - {op: delete, id: 1}\n",
			wantErr: `flow[0]: unknown op "delete"`,
		},
		{
			name:    "timeline without handle",
			yaml:    "name: n\ndescription: d\nflow:\n  - {op: timeline}\n",
			wantErr: "timeline: handle is required",
		},
		{
			name:    "post without id",
			yaml:    "name: n\ndescription: d\nflow:\n  - {op: post}\n",
			wantErr: "post: id is required",
		},
		{
			name:    "seed without ids",
			yaml:    "name: n\ndescription: d\nflow:\n  - {op: seed}\n",
			wantErr: "seed: ids is required",
		},
		{
			name:    "bad setup step",
			yaml:    "name: n\ndescription: d\nsetup:\n  - {op: user}\nflow:\n  - {op: post, id: 1}\n",
			wantErr: "setup[0]: user: id is required",
		},
		{
			name:    "unknown failure code",
			yaml:    "name: n\ndescription: d\nflow:\n  - op: fail\n    fail: {call: fetch_post, code: flaky}\n",
			wantErr: `unknown code "flaky"`,
		},
		{
			name:    "publish with expect",
			yaml:    "name: n\ndescription: d\nflow:\n  - op: publish\n    users: [{id: 2, name: Bob, handle: bob}]\n    expect: {empty: true}\n",
			wantErr: "publish: expect is not allowed",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nflow:\n  - {op: post, id: 1}\nassertions:\n  - {type: trace_contains}\n",
			wantErr: `assertions[0]: unknown assertion type "trace_contains"`,
		},
		{
			name:    "stats assertion without stats",
			yaml:    "name: n\ndescription: d\nflow:\n  - {op: post, id: 1}\nassertions:\n  - {type: stats}\n",
			wantErr: "stats is required",
		},
		{
			name:    "invalid origin",
			yaml:    "name: n\ndescription: d\norigin:\n  users:\n    - {id: 1, name: A, handle: a}\n    - {id: 1, name: B, handle: b}\nflow:\n  - {op: post, id: 1}\n",
			wantErr: "duplicate id 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(minimalScenario), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(minimalScenario), 0644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "minimal" already used by a.yaml`)
}

func TestLoadScenarios_Sorted(t *testing.T) {
	dir := t.TempDir()
	second := []byte(`
name: second
description: d
flow:
  - {op: search, query: x}
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), second, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(minimalScenario), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "minimal", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}
