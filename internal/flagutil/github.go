package flagutil

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	prowflagutil "sigs.k8s.io/prow/pkg/flagutil"
	prowgithub "sigs.k8s.io/prow/pkg/github"

	"github.com/petr-muller/stale-sweeper/internal/config"
)

const (
	githubTokenFileName string = "github-token"
)

// GitHubOptions are Prow's GitHub client options. When no token is given,
// a token file in the sweeper's config directory is used if present.
type GitHubOptions struct {
	prowflagutil.GitHubOptions
}

// AddFlags injects GitHub options into the given FlagSet
func (o *GitHubOptions) AddFlags(fs *flag.FlagSet) {
	o.GitHubOptions.AddFlags(fs)
}

// AddPFlags injects GitHub options into the given pflag.FlagSet
func (o *GitHubOptions) AddPFlags(fs *pflag.FlagSet) {
	goFlags := flag.NewFlagSet("github", flag.ContinueOnError)
	o.AddFlags(goFlags)
	fs.AddGoFlagSet(goFlags)
}

// Validate fills in the default token path and validates Prow's options
func (o *GitHubOptions) Validate(dryRun bool) error {
	if o.TokenPath == "" && o.AppID == "" {
		defaultTokenPath := filepath.Join(config.MustSweeperConfigDir(), githubTokenFileName)
		if _, err := os.Stat(defaultTokenPath); err == nil {
			o.TokenPath = defaultTokenPath
		}
	}
	return o.GitHubOptions.Validate(dryRun)
}

// Client creates a GitHub client; a dry-run client refuses to mutate anything
func (o *GitHubOptions) Client(dryRun bool) (prowgithub.Client, error) {
	return o.GitHubOptions.GitHubClient(dryRun)
}
