package agent

import (
	"context"

	git "github.com/go-git/go-git/v5"
)

// GoGitDriver is the production RepoDriver, grounded on go-git/go-git/v5
// rather than shelling out to the git binary.
type GoGitDriver struct{}

// NewGoGitDriver constructs a GoGitDriver.
func NewGoGitDriver() *GoGitDriver { return &GoGitDriver{} }

func (g *GoGitDriver) CloneShallow(ctx context.Context, url, dir string) error {
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	})
	return err
}
