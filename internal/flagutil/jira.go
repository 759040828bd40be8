package flagutil

import (
	"flag"
	"path/filepath"

	"github.com/spf13/pflag"
	prowflagutil "sigs.k8s.io/prow/pkg/flagutil"

	"github.com/petr-muller/stale-sweeper/internal/config"
)

const (
	jiraTokenFileName string = "jira-token"

	defaultJiraEndpoint = "https://issues.redhat.com"
)

// JiraOptions are Prow's Jira client options with the sweeper's defaults
type JiraOptions struct {
	prowflagutil.JiraOptions
}

func (o *JiraOptions) addCustomizedFlags(fs *flag.FlagSet) {
	defaultTokenPath := filepath.Join(config.MustSweeperConfigDir(), jiraTokenFileName)

	o.JiraOptions.AddCustomizedFlags(fs,
		prowflagutil.JiraDefaultEndpoint(defaultJiraEndpoint),
		prowflagutil.JiraDefaultBearerTokenFile(defaultTokenPath),
		prowflagutil.JiraNoBasicAuth(),
	)
}

// AddFlags injects Jira options into the given FlagSet
func (o *JiraOptions) AddFlags(fs *flag.FlagSet) {
	o.addCustomizedFlags(fs)
}

// AddPFlags injects Jira options into the given pflag.FlagSet. The flags are
// bridged from a stdlib FlagSet so parsed values land in Prow's options directly.
func (o *JiraOptions) AddPFlags(fs *pflag.FlagSet) {
	goFlags := flag.NewFlagSet("jira", flag.ContinueOnError)
	o.addCustomizedFlags(goFlags)
	fs.AddGoFlagSet(goFlags)
}

func (o *JiraOptions) Validate() error {
	return o.JiraOptions.Validate(false)
}
