package completion

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/speedviz/speedviz/internal/tui/recents"
)

// newTestCompleter creates a Completer for testing with a fixed cache directory.
func newTestCompleter(cacheDir string) *Completer {
	return NewCompleter(func(cmd *cobra.Command) string { return cacheDir })
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func seed(t *testing.T, dir string, items ...recents.Item) {
	t.Helper()
	store := recents.NewStore(dir)
	for _, item := range items {
		store.Add(item)
	}
}

func TestLocationCompletion(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir,
		recents.Item{ID: "nausny", Label: "New York", Type: recents.TypeLocation},
		recents.Item{ID: "nauscasf", Label: "San Francisco", Type: recents.TypeLocation},
		recents.Item{ID: "7922", Label: "Comcast", Type: recents.TypeClientIsp},
	)
	c := newTestCompleter(dir)

	got, directive := c.LocationCompletion()(newTestCmd(), nil, "")
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	assert.Equal(t, []cobra.Completion{
		cobra.CompletionWithDesc("nauscasf", "San Francisco"),
		cobra.CompletionWithDesc("nausny", "New York"),
	}, got)

	got, _ = c.LocationCompletion()(newTestCmd(), nil, "nausn")
	assert.Equal(t, []cobra.Completion{cobra.CompletionWithDesc("nausny", "New York")}, got)

	got, _ = c.LocationCompletion()(newTestCmd(), nil, "fran")
	assert.Equal(t, []cobra.Completion{cobra.CompletionWithDesc("nauscasf", "San Francisco")}, got)
}

func TestIspCompletion(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir,
		recents.Item{ID: "7922", Label: "Comcast", Type: recents.TypeClientIsp},
		recents.Item{ID: "3356", Label: "Level 3", Type: recents.TypeTransitIsp},
	)
	c := newTestCompleter(dir)

	got, _ := c.ClientIspCompletion()(newTestCmd(), nil, "79")
	assert.Equal(t, []cobra.Completion{cobra.CompletionWithDesc("7922", "Comcast")}, got)

	got, _ = c.TransitIspCompletion()(newTestCmd(), nil, "level")
	assert.Equal(t, []cobra.Completion{cobra.CompletionWithDesc("3356", "Level 3")}, got)
}

func TestCompletionEmptyCache(t *testing.T) {
	c := newTestCompleter(t.TempDir())

	got, directive := c.LocationCompletion()(newTestCmd(), nil, "")
	assert.Empty(t, got)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestAggregationCompletion(t *testing.T) {
	got, _ := AggregationCompletion(newTestCmd(), nil, "m")
	assert.Equal(t, []cobra.Completion{"month"}, got)

	got, _ = AggregationCompletion(newTestCmd(), nil, "")
	assert.Len(t, got, 3)
}

func TestDefaultCacheDirFunc(t *testing.T) {
	t.Setenv("SPEEDVIZ_CACHE_DIR", "/tmp/from-env")

	root := &cobra.Command{Use: "speedviz"}
	root.PersistentFlags().String("cache-dir", "", "")
	child := &cobra.Command{Use: "location"}
	root.AddCommand(child)
	child.SetContext(context.Background())

	assert.Equal(t, "/tmp/from-env", DefaultCacheDirFunc(child))

	_ = root.PersistentFlags().Set("cache-dir", "/tmp/from-flag")
	assert.Equal(t, "/tmp/from-flag", DefaultCacheDirFunc(child))
}
