package app

import (
	"time"

	"bero-pm/internal/adapters"
	"bero-pm/internal/ports"
)

type Service struct {
	Manifest    ports.ManifestStorePort
	Lock        ports.LockFilePort
	Installer   ports.InstallerPort
	NewRegistry func(baseURL string) ports.RegistryPort
	Clock       func() time.Time
}

func NewService() Service {
	return Service{
		Manifest:  adapters.NewManifestFileAdapter(),
		Lock:      adapters.NewLockFileAdapter(),
		Installer: adapters.NewTarballInstaller(0),
		NewRegistry: func(baseURL string) ports.RegistryPort {
			return adapters.NewRegistryHTTPAdapter(baseURL, 0, -1, 0)
		},
		Clock: time.Now,
	}
}
