package platform

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

// manifestName is the identity manifest looked for inside zip artifacts.
const manifestName = "ghstore.json"

// maxManifestBytes caps the manifest size read out of an archive.
const maxManifestBytes = 64 << 10

// versionPattern matches a version-ish token inside an asset filename,
// e.g. "1.2.3", "v2.0.0-rc.1".
var versionPattern = regexp.MustCompile(`^v?\d+(\.\d+)*([.-][0-9A-Za-z.]+)?$`)

// ArchiveInfoExtractor derives package identity from a downloaded artifact.
// Zip artifacts may carry an explicit ghstore.json manifest; everything else
// falls back to filename-derived identity, which is deterministic across
// versions of the same asset.
type ArchiveInfoExtractor struct{}

// NewArchiveInfoExtractor creates an ArchiveInfoExtractor.
func NewArchiveInfoExtractor() *ArchiveInfoExtractor {
	return &ArchiveInfoExtractor{}
}

type manifestWire struct {
	Package string `json:"package"`
	Version string `json:"version"`
	Name    string `json:"name"`
}

// ExtractPackageInfo returns the identity of the artifact at path, or nil when
// no identity can be derived.
func (x *ArchiveInfoExtractor) ExtractPackageInfo(artifactPath string) (*PackageInfo, error) {
	if strings.EqualFold(filepath.Ext(artifactPath), ".zip") {
		info, err := extractManifest(artifactPath)
		if err != nil {
			return nil, err
		}
		if info != nil {
			return info, nil
		}
		// No manifest inside; fall through to filename identity.
	}

	id, version := IdentityFromAssetName(filepath.Base(artifactPath))
	if id == "" {
		return nil, nil
	}
	return &PackageInfo{PackageID: id, Version: version, AppName: id}, nil
}

func extractManifest(artifactPath string) (*PackageInfo, error) {
	zr, err := zip.OpenReader(artifactPath)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening archive %s: %w", filepath.Base(artifactPath), err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if filepath.Base(f.Name) != manifestName {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening manifest in %s: %w", filepath.Base(artifactPath), err)
		}

		var wire manifestWire
		decodeErr := json.NewDecoder(io.LimitReader(rc, maxManifestBytes)).Decode(&wire)
		rc.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("decoding manifest in %s: %w", filepath.Base(artifactPath), decodeErr)
		}
		if wire.Package == "" {
			return nil, nil
		}

		name := wire.Name
		if name == "" {
			name = wire.Package
		}
		return &PackageInfo{PackageID: wire.Package, Version: wire.Version, AppName: name}, nil
	}

	return nil, nil
}

// IdentityFromAssetName derives a stable package id and version from a
// release asset filename. Version, OS, and architecture tokens are stripped
// so all versions of the same asset map to one id:
//
//	myapp_1.2.0_linux_amd64.tar.gz -> ("myapp", "1.2.0")
//	Tool-v2.0.0-x86_64.AppImage    -> ("tool", "v2.0.0")
func IdentityFromAssetName(name string) (id, version string) {
	stem := strings.ToLower(name)
	stem = trimArchiveExt(stem)

	var kept []string
	for _, tok := range strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-'
	}) {
		if tok == "" {
			continue
		}
		if versionPattern.MatchString(tok) {
			if version == "" {
				version = tok
			}
			continue
		}
		if isPlatformToken(tok) {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, "-"), version
}

func trimArchiveExt(lower string) string {
	for _, ext := range []string{".tar.gz", ".tar.xz", ".tar.bz2"} {
		if strings.HasSuffix(lower, ext) {
			return strings.TrimSuffix(lower, ext)
		}
	}
	return strings.TrimSuffix(lower, filepath.Ext(lower))
}

func isPlatformToken(tok string) bool {
	for _, t := range osTokens {
		if tok == t.token {
			return true
		}
	}
	for _, t := range archTokens {
		if tok == t.token {
			return true
		}
	}
	return false
}
