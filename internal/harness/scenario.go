package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/model"
)

// Scenario defines an engine scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Origin is what the fake origin serves when the scenario starts.
	Origin dataset.Dataset `yaml:"origin"`

	// Setup runs before the flow. Its origin calls are not traced and its
	// expectations are not checked.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the traced sequence of steps.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final archive.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// PassID is the fixed resolution pass ID. Defaults to "test-pass".
	PassID string `yaml:"pass_id,omitempty"`

	// MaxSteps overrides the per-pass origin fetch quota.
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// Step is one scenario step. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	Handle string   `yaml:"handle,omitempty"` // timeline, user_by_handle
	ID     uint64   `yaml:"id,omitempty"`     // conversation, post, user
	IDs    []uint64 `yaml:"ids,omitempty"`    // seed, retract
	Query  string   `yaml:"query,omitempty"`  // search
	Limit  int      `yaml:"limit,omitempty"`  // search

	Users []model.User `yaml:"users,omitempty"` // publish
	Posts []model.Post `yaml:"posts,omitempty"` // publish

	Fail *Failure `yaml:"fail,omitempty"` // fail

	Expect *Expect `yaml:"expect,omitempty"`
}

// Failure injects origin errors.
type Failure struct {
	Call   string `yaml:"call"`             // origin operation, e.g. fetch_post
	Target string `yaml:"target,omitempty"` // e.g. "10" or "@alice"; empty matches all
	Code   string `yaml:"code"`             // transient | malformed | not_found
	Times  int    `yaml:"times,omitempty"`  // 0 means every matching call
}

// Expect is the expected outcome of an engine step.
type Expect struct {
	// Posts is the expected post IDs, in order, for list operations and
	// for post (one ID).
	Posts []uint64 `yaml:"posts,omitempty"`

	// Empty expects a list operation to return no posts.
	Empty bool `yaml:"empty,omitempty"`

	// Found is the expected presence for post, user and user_by_handle.
	Found *bool `yaml:"found,omitempty"`

	// Handle is the expected handle for user and user_by_handle.
	Handle string `yaml:"handle,omitempty"`

	// Error is the expected origin error code (e.g. TRANSIENT_IO). A step
	// without it must succeed.
	Error string `yaml:"error,omitempty"`

	// Seed is the expected report counts for seed.
	Seed *SeedCounts `yaml:"seed,omitempty"`
}

// SeedCounts are expected seed report totals.
type SeedCounts struct {
	Archived      int `yaml:"archived"`
	AlreadyStored int `yaml:"already_stored"`
	Missing       int `yaml:"missing"`
	Failed        int `yaml:"failed"`
	Gaps          int `yaml:"gaps"`
}

// Assertion validates the archive after the flow.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Call and Count are used by origin_calls.
	Call  string `yaml:"call,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// IDs is used by stored_posts.
	IDs []uint64 `yaml:"ids,omitempty"`

	// Stats is used by stats.
	Stats *model.Stats `yaml:"stats,omitempty"`

	// Source and Edges are used by references.
	Source uint64            `yaml:"source,omitempty"`
	Edges  []model.Reference `yaml:"edges,omitempty"`

	// Conversation and Complete are used by conversation_complete.
	Conversation uint64 `yaml:"conversation,omitempty"`
	Complete     bool   `yaml:"complete,omitempty"`
}

// Step operations.
const (
	OpTimeline     = "timeline"
	OpConversation = "conversation"
	OpPost         = "post"
	OpUser         = "user"
	OpUserByHandle = "user_by_handle"
	OpSearch       = "search"
	OpSeed         = "seed"
	OpPublish      = "publish"
	OpRetract      = "retract"
	OpFail         = "fail"
)

// Assertion type constants.
const (
	AssertOriginCalls          = "origin_calls"
	AssertStoredPosts          = "stored_posts"
	AssertStats                = "stats"
	AssertReferences           = "references"
	AssertConversationComplete = "conversation_complete"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		names[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if err := s.Origin.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpTimeline, OpUserByHandle:
		if step.Handle == "" {
			return fmt.Errorf("%s: handle is required", step.Op)
		}
	case OpConversation, OpPost, OpUser:
		if step.ID == 0 {
			return fmt.Errorf("%s: id is required", step.Op)
		}
	case OpSearch:
		// An empty query is valid and matches nothing.
	case OpSeed, OpRetract:
		if len(step.IDs) == 0 {
			return fmt.Errorf("%s: ids is required", step.Op)
		}
	case OpPublish:
		if len(step.Users) == 0 && len(step.Posts) == 0 {
			return fmt.Errorf("publish: users or posts is required")
		}
		if step.Expect != nil {
			return fmt.Errorf("publish: expect is not allowed")
		}
	case OpFail:
		if step.Fail == nil || step.Fail.Call == "" {
			return fmt.Errorf("fail: fail.call is required")
		}
		if _, err := failureError(*step.Fail); err != nil {
			return err
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertOriginCalls:
		if a.Call == "" {
			return fmt.Errorf("call is required for origin_calls")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for origin_calls")
		}
	case AssertStoredPosts:
		// An empty ids list asserts an empty archive.
	case AssertStats:
		if a.Stats == nil {
			return fmt.Errorf("stats is required for stats")
		}
	case AssertReferences:
		if a.Source == 0 {
			return fmt.Errorf("source is required for references")
		}
	case AssertConversationComplete:
		if a.Conversation == 0 {
			return fmt.Errorf("conversation is required for conversation_complete")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
