package ghrelease

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/warpcode/zinstall/pkg/backend"
)

// markerName is the per-app version marker persisted across invocations.
const markerName = ".zinstall-version"

// versionAliases all resolve to the latest published release.
var versionAliases = map[string]bool{
	"":       true,
	"latest": true,
	"main":   true,
	"master": true,
}

// Installer places GitHub release payloads under a per-app directory tree:
// <root>/<app>/ holds the extracted archive plus the version marker. Installs
// are skipped when the marker already records the resolved tag.
type Installer struct {
	client *Client
	root   string
	goos   string
	arch   string
}

// NewInstaller builds an installer rooted at dir for the given platform.
func NewInstaller(client *Client, dir string, facts *backend.Facts) *Installer {
	return &Installer{
		client: client,
		root:   dir,
		goos:   facts.GOOS,
		arch:   facts.Arch,
	}
}

// Install resolves spec ("owner/repo" or "owner/repo@version") to a concrete
// release tag, and downloads and extracts a platform-matching asset into the
// app's directory unless that tag is already installed.
func (i *Installer) Install(ctx context.Context, app, spec string) error {
	owner, repo, version, err := parseSpec(spec)
	if err != nil {
		return err
	}

	var release *Release
	if versionAliases[version] {
		release, err = i.client.LatestRelease(ctx, owner, repo)
	} else {
		release, err = i.client.ReleaseByTag(ctx, owner, repo, version)
	}
	if err != nil {
		return err
	}

	appDir := filepath.Join(i.root, app)
	marker := filepath.Join(appDir, markerName)
	if current, err := os.ReadFile(marker); err == nil &&
		strings.TrimSpace(string(current)) == release.TagName {
		log.Info().Str("app", app).Str("version", release.TagName).Msg("Release already installed")
		return nil
	}

	asset, ok := selectAsset(release.Assets, i.goos, i.arch)
	if !ok {
		return fmt.Errorf("no %s/%s asset in %s/%s release %s", i.goos, i.arch, owner, repo, release.TagName)
	}
	log.Info().Str("app", app).Str("version", release.TagName).Str("asset", asset.Name).Msg("Installing release")

	if err := os.MkdirAll(i.root, 0o755); err != nil {
		return fmt.Errorf("failed to create install root: %w", err)
	}

	// Stage next to the final location so the rename stays on one filesystem.
	staging, err := os.MkdirTemp(i.root, ".stage-"+app+"-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	archivePath := filepath.Join(staging, asset.Name)
	if err := i.client.Download(ctx, asset.BrowserDownloadURL, archivePath); err != nil {
		return err
	}

	extractDir := filepath.Join(staging, "extracted")
	if err := extractArchive(archivePath, extractDir); err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	payload, err := flattenSingleDir(extractDir)
	if err != nil {
		return err
	}
	if err := ensureBinDir(payload); err != nil {
		return err
	}

	if err := os.RemoveAll(appDir); err != nil {
		return fmt.Errorf("failed to remove previous install: %w", err)
	}
	if err := os.Rename(payload, appDir); err != nil {
		return fmt.Errorf("failed to move install into place: %w", err)
	}
	if err := os.WriteFile(marker, []byte(release.TagName+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write version marker: %w", err)
	}

	log.Info().Str("app", app).Str("version", release.TagName).Str("dir", appDir).Msg("Release installed")
	return nil
}

// parseSpec splits "owner/repo[@version]".
func parseSpec(spec string) (owner, repo, version string, err error) {
	ref := spec
	if at := strings.LastIndex(spec, "@"); at >= 0 {
		ref, version = spec[:at], spec[at+1:]
	}
	owner, repo, ok := strings.Cut(ref, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", "", fmt.Errorf("invalid release spec %q, want owner/repo[@version]", spec)
	}
	return owner, repo, version, nil
}

// selectAsset picks the best release asset for the platform: the name must
// mention the OS and architecture (under common synonyms) and use a supported
// archive format, preferring tarballs over zip files.
func selectAsset(assets []Asset, goos, arch string) (Asset, bool) {
	var best Asset
	bestScore := 0

	for _, asset := range assets {
		name := strings.ToLower(asset.Name)
		if !containsAny(name, osSynonyms(goos)) || !containsAny(name, archSynonyms(arch)) {
			continue
		}

		score := 0
		switch {
		case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
			score = 2
		case strings.HasSuffix(name, ".zip"):
			score = 1
		default:
			continue
		}

		if score > bestScore {
			best, bestScore = asset, score
		}
	}
	return best, bestScore > 0
}

func containsAny(name string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(name, n) {
			return true
		}
	}
	return false
}

func osSynonyms(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"darwin", "macos", "osx"}
	case "linux":
		return []string{"linux"}
	default:
		return []string{goos}
	}
}

func archSynonyms(arch string) []string {
	switch arch {
	case "amd64":
		return []string{"amd64", "x86_64", "x64"}
	case "arm64":
		return []string{"arm64", "aarch64"}
	case "armhf":
		return []string{"armhf", "armv7", "arm"}
	case "i386":
		return []string{"i386", "386"}
	default:
		return []string{arch}
	}
}

// flattenSingleDir unwraps archives that place everything under one
// top-level wrapper directory, returning the effective payload root. A lone
// bin/ directory is payload, not a wrapper.
func flattenSingleDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() && entries[0].Name() != "bin" {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// ensureBinDir synthesizes a bin/ directory of relative symlinks to every
// executable in the payload when the archive ships none.
func ensureBinDir(payload string) error {
	binDir := filepath.Join(payload, "bin")
	if info, err := os.Stat(binDir); err == nil && info.IsDir() {
		return nil
	}

	var executables []string
	err := filepath.WalkDir(payload, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			executables = append(executables, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan payload: %w", err)
	}
	if len(executables) == 0 {
		return nil
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("failed to create bin directory: %w", err)
	}
	for _, exe := range executables {
		rel, err := filepath.Rel(binDir, exe)
		if err != nil {
			return err
		}
		link := filepath.Join(binDir, filepath.Base(exe))
		if err := os.Symlink(rel, link); err != nil {
			return fmt.Errorf("failed to link %s: %w", filepath.Base(exe), err)
		}
	}
	return nil
}
