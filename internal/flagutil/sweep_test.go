package flagutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/petr-muller/stale-sweeper/internal/sweep"
)

func TestSweepOptionsConfig(t *testing.T) {
	profilesPath := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(profilesPath, []byte(`profiles:
  strict:
    daysBeforeStale: 14
    daysBeforeClose: 3
    exemptLabels: [pinned]
    closeStatus: Obsolete
`), 0644))

	testCases := []struct {
		name                string
		args                []string
		expected            sweep.Config
		expectedCloseStatus string
		expectError         bool
	}{
		{
			name: "defaults",
			expected: sweep.Config{
				DaysBeforeStale: defaultDaysBeforeStale,
				DaysBeforeClose: defaultDaysBeforeClose,
				StaleLabel:      sweep.DefaultStaleLabel,
				StaleMessage:    defaultStaleMessage,
				CloseMessage:    defaultCloseMessage,
			},
		},
		{
			name: "flags",
			args: []string{"--days-before-stale=1", "--any-of-labels=bug,kind/bug", "--delete-branch-on-close", "--operations-per-run=20"},
			expected: sweep.Config{
				DaysBeforeStale:     1,
				DaysBeforeClose:     defaultDaysBeforeClose,
				RequiredAnyOfLabels: []string{"bug", "kind/bug"},
				StaleLabel:          sweep.DefaultStaleLabel,
				StaleMessage:        defaultStaleMessage,
				CloseMessage:        defaultCloseMessage,
				DeleteBranchOnClose: true,
				OperationsPerRun:    20,
			},
		},
		{
			name: "profile overrides defaults",
			args: []string{"--profiles=" + profilesPath, "--profile=strict"},
			expected: sweep.Config{
				DaysBeforeStale: 14,
				DaysBeforeClose: 3,
				ExemptLabels:    []string{"pinned"},
				StaleLabel:      sweep.DefaultStaleLabel,
				StaleMessage:    defaultStaleMessage,
				CloseMessage:    defaultCloseMessage,
			},
			expectedCloseStatus: "Obsolete",
		},
		{
			name: "explicit flags override profile",
			args: []string{"--profiles=" + profilesPath, "--profile=strict", "--days-before-close=10", "--close-status=Done"},
			expected: sweep.Config{
				DaysBeforeStale: 14,
				DaysBeforeClose: 10,
				ExemptLabels:    []string{"pinned"},
				StaleLabel:      sweep.DefaultStaleLabel,
				StaleMessage:    defaultStaleMessage,
				CloseMessage:    defaultCloseMessage,
			},
			expectedCloseStatus: "Done",
		},
		{
			name:        "invalid result",
			args:        []string{"--days-before-close=0"},
			expectError: true,
		},
		{
			name:        "stale label cannot be exempt",
			args:        []string{"--exempt-labels=stale"},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var o SweepOptions
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			o.AddPFlags(fs)
			require.NoError(t, fs.Parse(tc.args))

			profile, err := o.LoadProfile()
			require.NoError(t, err)

			cfg, err := o.Config(profile)
			if tc.expectError {
				if err == nil {
					t.Fatalf("expected an error, got config %+v", cfg)
				}
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, cfg); diff != "" {
				t.Errorf("config differs from expected (-want +got):\n%s", diff)
			}
			if got := o.ResolveCloseStatus(profile); got != tc.expectedCloseStatus {
				t.Errorf("expected close status %q, got %q", tc.expectedCloseStatus, got)
			}
		})
	}
}
