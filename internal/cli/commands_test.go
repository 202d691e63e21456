package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/mirror"
	"github.com/roach88/archivist/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func originDataset() *dataset.Dataset {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &dataset.Dataset{
		Users: []model.User{
			{ID: 1, Name: "Alice", Handle: "alice", Description: "writes things"},
			{ID: 2, Name: "Bob", Handle: "bob"},
		},
		Posts: []model.Post{
			{ID: 100, AuthorID: 1, ConversationID: 100, Text: "first post", CreatedAt: t0},
			{ID: 101, AuthorID: 2, ConversationID: 100, Text: "reply from bob", CreatedAt: t0.Add(5 * time.Minute),
				References: []model.Reference{{Kind: model.ReplyTo, ID: 100}}},
			{ID: 102, AuthorID: 1, ConversationID: 102, Text: "quoting bob", CreatedAt: t0.Add(time.Hour),
				References: []model.Reference{{Kind: model.Quote, ID: 101}}},
		},
	}
}

// cliEnv is a database plus a config file pointing at an origin.
type cliEnv struct {
	dir    string
	config string
}

func newEnv(t *testing.T, originURL string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "archivist.cue")
	src := "database: \"" + filepath.Join(dir, "archive.db") + "\"\n" +
		"origin: {\n\turl: \"" + originURL + "\"\n\tretry_cooldown: \"1ms\"\n\ttimeout: \"2s\"\n}\n"
	require.NoError(t, os.WriteFile(cfg, []byte(src), 0o644))
	return &cliEnv{dir: dir, config: cfg}
}

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mirror.NewRouter(dataset.NewIndex(originDataset())))
	t.Cleanup(srv.Close)
	return srv
}

func (e *cliEnv) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Run(append([]string{"--config", e.config}, args...), nil, &out, &errOut)
	return code, out.String(), errOut.String()
}

func decodeData[T any](t *testing.T, stdout string) T {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestTimelineCommand(t *testing.T) {
	env := newEnv(t, newOrigin(t).URL)

	code, stdout, stderr := env.run(t, "--format", "json", "timeline", "@alice")
	require.Equal(t, ExitSuccess, code, stderr)

	entries := decodeData[[]model.Entry](t, stdout)
	assert.Equal(t, []uint64{102, 100}, model.PostIDs(entries))

	code, stdout, stderr = env.run(t, "timeline", "alice")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "@alice  quoting bob  (quoted 101)")
}

func TestConversationCommand(t *testing.T) {
	env := newEnv(t, newOrigin(t).URL)

	code, stdout, stderr := env.run(t, "--format", "json", "conversation", "100")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, []uint64{100, 101}, model.PostIDs(decodeData[[]model.Entry](t, stdout)))

	code, _, stderr = env.run(t, "conversation", "abc")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `invalid id "abc"`)
}

func TestPostCommand(t *testing.T) {
	env := newEnv(t, newOrigin(t).URL)

	code, stdout, stderr := env.run(t, "--format", "json", "post", "102")
	require.Equal(t, ExitSuccess, code, stderr)
	e := decodeData[model.Entry](t, stdout)
	assert.Equal(t, uint64(102), e.Post.ID)
	require.NotNil(t, e.Author)
	assert.Equal(t, "alice", e.Author.Handle)

	code, _, stderr = env.run(t, "post", "999")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "post 999 not found")
}

func TestUserCommand(t *testing.T) {
	env := newEnv(t, newOrigin(t).URL)

	code, stdout, stderr := env.run(t, "user", "@alice")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "[1] @alice  Alice")
	assert.Contains(t, stdout, "writes things")

	code, stdout, stderr = env.run(t, "--format", "json", "user", "2")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "bob", decodeData[model.User](t, stdout).Handle)

	code, _, _ = env.run(t, "user", "@carol")
	assert.Equal(t, ExitFailure, code)
}

func TestSeedSearchExport(t *testing.T) {
	env := newEnv(t, newOrigin(t).URL)

	ids := filepath.Join(env.dir, "ids.txt")
	require.NoError(t, os.WriteFile(ids, []byte("# seed\n102\n999\n"), 0o644))

	code, stdout, stderr := env.run(t, "seed", ids)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "archived 1, already stored 0, missing 1, failed 0, gaps 0")

	code, stdout, stderr = env.run(t, "--format", "json", "stats")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, model.Stats{Users: 2, Posts: 3, Conversations: 2, References: 2},
		decodeData[model.Stats](t, stdout))

	code, stdout, stderr = env.run(t, "--format", "json", "search", "BOB")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, []uint64{102, 101}, model.PostIDs(decodeData[[]model.Entry](t, stdout)))

	out := filepath.Join(env.dir, "export")
	code, _, stderr = env.run(t, "export", out)
	require.Equal(t, ExitSuccess, code, stderr)

	ds, err := dataset.Load(out)
	require.NoError(t, err)
	assert.Len(t, ds.Users, 2)
	assert.Len(t, ds.Posts, 3)
	assert.Equal(t, []model.Reference{{Kind: model.Quote, ID: 101}}, ds.Posts[2].References)
}

func TestExportRebuildsThroughMirror(t *testing.T) {
	env := newEnv(t, newOrigin(t).URL)

	code, _, stderr := env.run(t, "timeline", "alice")
	require.Equal(t, ExitSuccess, code, stderr)

	out := filepath.Join(env.dir, "export")
	code, _, stderr = env.run(t, "export", out)
	require.Equal(t, ExitSuccess, code, stderr)

	ds, err := dataset.Load(out)
	require.NoError(t, err)
	second := httptest.NewServer(mirror.NewRouter(dataset.NewIndex(ds)))
	t.Cleanup(second.Close)

	rebuilt := newEnv(t, second.URL)
	code, stdout, stderr := rebuilt.run(t, "--format", "json", "timeline", "alice")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, []uint64{102, 100}, model.PostIDs(decodeData[[]model.Entry](t, stdout)))
}

func TestSearchWorksOffline(t *testing.T) {
	srv := newOrigin(t)
	env := newEnv(t, srv.URL)

	code, _, stderr := env.run(t, "post", "101")
	require.Equal(t, ExitSuccess, code, stderr)
	srv.Close()

	code, stdout, stderr := env.run(t, "search", "reply")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "reply from bob")

	code, _, stderr = env.run(t, "post", "102")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "post failed")
}

func TestJSONErrorResponse(t *testing.T) {
	env := newEnv(t, newOrigin(t).URL)

	code, stdout, _ := env.run(t, "--format", "json", "post", "999")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ExitFailure, resp.Error.Code)
}
