package engine

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bguidolim/mcs/internal/state"
	"github.com/stretchr/testify/assert"
)

func TestReport_PrintNothingToDo(t *testing.T) {
	r := &Report{Scope: "/work/app", Packs: []*PackReport{{Pack: "ios", Status: StatusUnchanged}}}

	var buf bytes.Buffer
	r.Print(&buf)

	assert.Equal(t, "Sync /work/app\nNothing to do.\n", buf.String())
	assert.False(t, r.Failed())
}

func TestReport_PrintGroupsByPack(t *testing.T) {
	r := &Report{
		Scope:  "/work/app",
		DryRun: true,
		Packs: []*PackReport{
			{
				Pack: "ios", Version: "1.0.0", Status: StatusAdded,
				Operations: []Operation{
					{Kind: state.KindPackage, Artifact: "node", Op: OpAdd},
					{Kind: state.KindSetting, Artifact: "theme", Op: OpSkip, Note: "user-owned"},
				},
			},
			{Pack: "quiet", Status: StatusUnchanged},
			{
				Pack: "docs", Status: StatusReconciled,
				Failures: []*ApplyFailure{{Pack: "docs", Kind: state.KindPlugin, Artifact: "x@y", Op: OpAdd, Err: errors.New("boom")}},
			},
		},
	}

	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Sync /work/app (dry run)\n"))
	assert.Contains(t, out, "ios 1.0.0 [added]")
	assert.Contains(t, out, "(user-owned)")
	assert.Contains(t, out, "failed: plugin x@y: boom")
	assert.NotContains(t, out, "quiet")
	assert.Equal(t, 1, r.Changes())
	assert.True(t, r.Failed())
	assert.Len(t, r.Failures(), 1)
}

func TestSummarize(t *testing.T) {
	st := state.New()
	st.SetPack("ios", &state.ArtifactRecord{
		BrewPackages:     []string{"node"},
		GitignoreEntries: []string{".a", ".b"},
	})
	st.SetPack("docs", &state.ArtifactRecord{})
	st.SetExcluded("ios", []string{"hook"})

	s := Summarize("/work/app", st)
	assert.Len(t, s.Packs, 2)
	assert.Equal(t, "docs", s.Packs[0].Pack)
	assert.Equal(t, 3, s.Packs[1].Total)
	assert.Equal(t, 2, s.Packs[1].Artifacts[state.KindIgnore])

	var buf bytes.Buffer
	s.Print(&buf)
	assert.Equal(t, "Scope: /work/app\n"+
		"  docs  0 artifact(s)\n"+
		"  ios   3 artifact(s): 1 package, 2 ignore-entry [excluded: hook]\n", buf.String())

	var empty bytes.Buffer
	Summarize("global", state.New()).Print(&empty)
	assert.Equal(t, "Scope: global\nNo packs configured.\n", empty.String())
}
