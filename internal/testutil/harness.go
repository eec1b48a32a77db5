// Package testutil provides shared fixtures for engine tests: a sealed
// registry with the builtin modules, definition loading from source
// text, and a full-application integration harness.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/nodeflow/internal/app"
	"github.com/vk/nodeflow/internal/cache"
	"github.com/vk/nodeflow/internal/compiler"
	"github.com/vk/nodeflow/internal/document"
	"github.com/vk/nodeflow/internal/executor"
	"github.com/vk/nodeflow/internal/graphdef"
	"github.com/vk/nodeflow/internal/proto"
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/modules/arith"
	"github.com/vk/nodeflow/modules/color"
	"github.com/vk/nodeflow/modules/listops"
	"github.com/vk/nodeflow/modules/logic"
	"github.com/vk/nodeflow/modules/pathops"
	"github.com/vk/nodeflow/modules/rasterops"
	"github.com/vk/nodeflow/modules/source"
	strmod "github.com/vk/nodeflow/modules/strings"
	"github.com/vk/nodeflow/modules/vector"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// NewRegistry returns a sealed registry populated with every builtin
// module.
func NewRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, m := range []registry.Module{
		&source.Module{},
		&arith.Module{},
		&logic.Module{},
		&strmod.Module{},
		&vector.Module{},
		&color.Module{},
		&pathops.Module{},
		&rasterops.Module{},
		&listops.Module{},
	} {
		m.Register(reg)
	}
	require.NoError(t, reg.Seal(context.Background()))
	return reg
}

// MustLoadSource parses definition source text against reg and fails
// the test on any load error.
func MustLoadSource(t *testing.T, reg *registry.Registry, src string) *graphdef.Document {
	t.Helper()
	doc, err := graphdef.LoadSource(context.Background(), reg, src, t.Name()+".ng.hcl")
	require.NoError(t, err)
	return doc
}

// CompileDocument snapshots and compiles the loaded definition's
// declared output.
func CompileDocument(t *testing.T, reg *registry.Registry, doc *graphdef.Document, generation uint64) *proto.Graph {
	t.Helper()
	g, err := compiler.Compile(context.Background(), doc.Graph.Snapshot(), reg, doc.Output, generation, nil)
	require.NoError(t, err)
	return g
}

// Pipeline bundles the pieces most tests need: a sealed registry and a
// fresh cache, plus compile and evaluate shorthands with an internal
// generation counter.
type Pipeline struct {
	Reg        *registry.Registry
	Cache      *cache.Cache
	generation uint64
}

// NewPipeline creates a Pipeline with default cache limits.
func NewPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return &Pipeline{
		Reg:   NewRegistry(t),
		Cache: cache.New(cache.Config{}),
	}
}

// Compile compiles the requested output from the given graph, bumping
// the pipeline's generation.
func (p *Pipeline) Compile(t *testing.T, g *document.Graph, output document.ID) *proto.Graph {
	t.Helper()
	p.generation++
	pg, err := compiler.Compile(context.Background(), g.Snapshot(), p.Reg, output, p.generation, p.Cache)
	require.NoError(t, err)
	return pg
}

// Evaluate runs the proto graph against the pipeline's cache and
// returns the output value with pass statistics.
func (p *Pipeline) Evaluate(t *testing.T, g *proto.Graph) (cty.Value, executor.Stats) {
	t.Helper()
	v, stats, err := executor.EvaluateWithStats(context.Background(), g, p.Cache, p.Reg)
	require.NoError(t, err)
	return v, stats
}

// TryEvaluate runs the proto graph and returns any evaluation error
// instead of failing the test.
func (p *Pipeline) TryEvaluate(g *proto.Graph) (cty.Value, error) {
	return executor.Evaluate(context.Background(), g, p.Cache, p.Reg)
}

// Render loads source text, compiles its declared output, and
// evaluates it in one step.
func (p *Pipeline) Render(t *testing.T, src string) (cty.Value, executor.Stats) {
	t.Helper()
	doc := MustLoadSource(t, p.Reg, src)
	return p.Evaluate(t, p.Compile(t, doc.Graph, doc.Output))
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	Stdout    string
	LogOutput string
	Err       error
}

// RunIntegrationTest writes the given definition files to a temporary
// directory and runs the full application against it.
func RunIntegrationTest(t *testing.T, files map[string]string, output string) *HarnessResult {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", ".tmp-integration-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	appConfig, err := app.NewConfig(app.Config{
		GraphPath: tmpDir,
		Output:    output,
		LogLevel:  "debug",
		LogFormat: "text",
	})
	require.NoError(t, err)

	stdout := &SafeBuffer{}
	logBuffer := &SafeBuffer{}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("application startup panicked | %v", r)
			}
		}()
		testApp, err := app.NewAppWithLogOutput(stdout, logBuffer, appConfig)
		if err != nil {
			runErr = err
			return
		}
		runErr = testApp.Run(context.Background())
	}()

	if os.Getenv("NODEFLOW_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		Stdout:    stdout.String(),
		LogOutput: logBuffer.String(),
		Err:       runErr,
	}
}
