package app

import (
	"os"
	"path/filepath"
)

// Paths holds all resolved paths under the forgeloop home directory
type Paths struct {
	Home      string // .forgeloop directory
	Etc       string // .forgeloop/etc
	Var       string // .forgeloop/var
	Artifacts string // .forgeloop/var/artifacts

	// Key files
	Config       string // .forgeloop/etc/config.yaml
	Backlog      string // .forgeloop/var/backlog.json
	SessionState string // .forgeloop/var/session_state.json
	History      string // .forgeloop/var/history.json
	ProgressLog  string // .forgeloop/var/progress.log
	Health       string // .forgeloop/var/health.json
	StopRequest  string // .forgeloop/var/stop.request
	LockDB       string // .forgeloop/var/forgeloop.db
}

// ResolvePaths returns all paths based on the FORGELOOP_HOME environment
// variable, defaulting to .forgeloop in the working directory.
func ResolvePaths() Paths {
	home := os.Getenv("FORGELOOP_HOME")
	if home == "" {
		home = ".forgeloop"
	}
	return ResolvePathsIn(home)
}

// ResolvePathsIn returns all paths rooted at the given home directory
func ResolvePathsIn(home string) Paths {
	p := Paths{
		Home: home,
		Etc:  filepath.Join(home, "etc"),
		Var:  filepath.Join(home, "var"),
	}

	p.Artifacts = filepath.Join(p.Var, "artifacts")

	p.Config = filepath.Join(p.Etc, "config.yaml")
	p.Backlog = filepath.Join(p.Var, "backlog.json")
	p.SessionState = filepath.Join(p.Var, "session_state.json")
	p.History = filepath.Join(p.Var, "history.json")
	p.ProgressLog = filepath.Join(p.Var, "progress.log")
	p.Health = filepath.Join(p.Var, "health.json")
	p.StopRequest = filepath.Join(p.Var, "stop.request")
	p.LockDB = filepath.Join(p.Var, "forgeloop.db")

	return p
}
