package ports

import "context"

type InstallerPort interface {
	Install(ctx context.Context, name string, url string, shasum string, destDir string) error
}
