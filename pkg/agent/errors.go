package agent

import "errors"

var (
	errBuildFailed = errors.New("agent: container build failed")
	errRunFailed   = errors.New("agent: container run failed")
	errCloneFailed = errors.New("agent: repository clone failed")
)
