package sweepconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

const profilesYAML = `profiles:
  ota:
    repo: openshift/oc
    daysBeforeStale: 90
    daysBeforeClose: 30
    requiredAnyOfLabels: [kind/bug]
    exemptLabels: [lifecycle/frozen]
    staleLabel: lifecycle/stale
    deleteBranchOnClose: true
  bugs:
    jql: project = OCPBUGS AND component = "Cluster Version Operator"
    closeStatus: CLOSED
    operationsPerRun: 50
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	profiles, err := Load(writeProfiles(t, profilesYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"bugs", "ota"}, profiles.Names())

	bugs, err := profiles.Get("bugs")
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", bugs.CloseStatus)
	assert.Contains(t, bugs.JQL, "OCPBUGS")

	_, err = profiles.Get("missing")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeProfiles(t, "profiles:\n  typo:\n    daysBeforeStal: 3\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicitly given file must exist")

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	profiles, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, profiles.Names())
}

func TestProfileApply(t *testing.T) {
	base := sweep.Config{
		DaysBeforeStale: 30,
		DaysBeforeClose: 7,
		StaleMessage:    "stale",
		CloseMessage:    "closed",
		ExemptLabels:    []string{"keep"},
	}

	testCases := []struct {
		name     string
		profile  string
		expected sweep.Config
	}{
		{
			name:     "unset profile keeps base",
			profile:  "bugs",
			expected: func() sweep.Config { c := base; c.OperationsPerRun = 50; return c }(),
		},
		{
			name:    "profile overrides set fields",
			profile: "ota",
			expected: sweep.Config{
				DaysBeforeStale:     90,
				DaysBeforeClose:     30,
				RequiredAnyOfLabels: []string{"kind/bug"},
				ExemptLabels:        []string{"lifecycle/frozen"},
				StaleLabel:          "lifecycle/stale",
				StaleMessage:        "stale",
				CloseMessage:        "closed",
				DeleteBranchOnClose: true,
			},
		},
	}

	profiles, err := Load(writeProfiles(t, profilesYAML))
	require.NoError(t, err)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			profile, err := profiles.Get(tc.profile)
			require.NoError(t, err)

			cfg := base
			profile.Apply(&cfg)
			if diff := cmp.Diff(tc.expected, cfg); diff != "" {
				t.Errorf("config differs from expected (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	stale := 10
	original := &Profiles{Profiles: map[string]Profile{"small": {Repo: "org/repo", DaysBeforeStale: &stale}}}
	path := filepath.Join(t.TempDir(), "nested", "profiles.yaml")

	require.NoError(t, original.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}
