package adapters

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

const defaultTarballTimeout = 60 * time.Second

// TarballInstaller downloads a source archive, verifies its digest, and
// extracts it into the target directory. Registry archives are
// gzip-compressed tarballs with a single "package/" root that is
// stripped on extraction.
type TarballInstaller struct {
	Timeout time.Duration
}

func NewTarballInstaller(timeoutSec int) TarballInstaller {
	timeout := defaultTarballTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	return TarballInstaller{Timeout: timeout}
}

func (t TarballInstaller) Install(ctx context.Context, name string, url string, shasum string, destDir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to build download request for %s", name)).
			WithCause(err)
	}
	client := &http.Client{Timeout: t.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg(fmt.Sprintf("failed to download tarball for %s", name)).
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg(fmt.Sprintf("tarball download for %s returned status %d", name, resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read tarball for %s", name)).
			WithCause(err)
	}

	if shasum != "" {
		sum := sha1.Sum(data)
		actual := hex.EncodeToString(sum[:])
		if actual != strings.ToLower(strings.TrimSpace(shasum)) {
			return errbuilder.New().
				WithCode(errbuilder.CodeDataLoss).
				WithMsg(fmt.Sprintf("digest mismatch for %s: want %s, got %s", name, shasum, actual))
		}
	}

	log.Ctx(ctx).Debug().
		Str("package", name).
		Int("bytes", len(data)).
		Str("dest", destDir).
		Msg("extracting tarball")
	return extractTarball(data, destDir)
}

func extractTarball(data []byte, destDir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("tarball is not a gzip archive").
			WithCause(err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create target directory").
			WithCause(err)
	}
	cleanDest := filepath.Clean(destDir)

	reader := tar.NewReader(gz)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read tarball entry").
				WithCause(err)
		}
		rel := stripArchiveRoot(header.Name)
		if rel == "" {
			continue
		}
		target := filepath.Join(cleanDest, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("archive entry escapes target directory: %s", header.Name))
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to create archive directory").
					WithCause(err)
			}
		case tar.TypeReg:
			if err := writeArchiveFile(target, header, reader); err != nil {
				return err
			}
		}
	}
}

func writeArchiveFile(target string, header *tar.Header, reader io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create archive directory").
			WithCause(err)
	}
	mode := os.FileMode(header.Mode & 0777)
	if mode == 0 {
		mode = 0644
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create archive file").
			WithCause(err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to extract archive file").
			WithCause(err)
	}
	return file.Close()
}

// stripArchiveRoot drops the archive's single root directory, typically
// "package", from an entry name.
func stripArchiveRoot(name string) string {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	parts := strings.SplitN(name, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
