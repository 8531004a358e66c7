package app

import "bero-pm/internal/types"

type InstallRequest struct {
	Dir         string
	Packages    []string
	SaveDev     bool
	Production  bool
	Registry    string
	Concurrency int
}

type InstallResult struct {
	TopLevel int
	Nested   int
	LockPath string
}

type ResolveRequest struct {
	Dir        string
	Production bool
	Registry   string
}

type ResolveResult struct {
	Plan     types.Plan
	LockPath string
}

type InspectRequest struct {
	Dir string
}

type InspectEntry struct {
	Key          string
	Version      string
	URL          string
	Dependencies int
}

type InspectResult struct {
	LockPath string
	Entries  []InspectEntry
}
