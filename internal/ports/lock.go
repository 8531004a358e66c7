package ports

import "bero-pm/internal/types"

type LockFilePort interface {
	Read(path string) (map[string]types.LockEntry, error)
	Write(path string, entries map[string]types.LockEntry) error
}
