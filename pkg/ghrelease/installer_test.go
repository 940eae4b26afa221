package ghrelease

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/warpcode/zinstall/pkg/backend"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		owner   string
		repo    string
		version string
		wantErr bool
	}{
		{"junegunn/fzf", "junegunn", "fzf", "", false},
		{"junegunn/fzf@0.55.0", "junegunn", "fzf", "0.55.0", false},
		{"owner/repo@latest", "owner", "repo", "latest", false},
		{"norepo", "", "", "", true},
		{"/repo", "", "", "", true},
		{"owner/", "", "", "", true},
	}

	for _, tt := range tests {
		owner, repo, version, err := parseSpec(tt.spec)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSpec(%q): expected error", tt.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSpec(%q): unexpected error: %v", tt.spec, err)
			continue
		}
		if owner != tt.owner || repo != tt.repo || version != tt.version {
			t.Errorf("parseSpec(%q) = (%s, %s, %s), want (%s, %s, %s)",
				tt.spec, owner, repo, version, tt.owner, tt.repo, tt.version)
		}
	}
}

func TestSelectAsset(t *testing.T) {
	assets := []Asset{
		{Name: "tool_1.0_windows_amd64.zip"},
		{Name: "tool_1.0_linux_x86_64.zip"},
		{Name: "tool_1.0_linux_x86_64.tar.gz"},
		{Name: "tool_1.0_darwin_arm64.tar.gz"},
		{Name: "tool_1.0_linux_amd64.deb"},
		{Name: "checksums.txt"},
	}

	asset, ok := selectAsset(assets, "linux", "amd64")
	if !ok {
		t.Fatal("Expected a matching asset")
	}
	// Tarball wins over zip; x86_64 counts as amd64.
	if asset.Name != "tool_1.0_linux_x86_64.tar.gz" {
		t.Errorf("Expected linux tarball, got %s", asset.Name)
	}

	asset, ok = selectAsset(assets, "darwin", "arm64")
	if !ok || asset.Name != "tool_1.0_darwin_arm64.tar.gz" {
		t.Errorf("Expected darwin arm64 tarball, got %s (ok=%v)", asset.Name, ok)
	}

	if _, ok := selectAsset(assets, "linux", "arm64"); ok {
		t.Error("Expected no match for linux/arm64")
	}
}

func TestSelectAssetMacSynonyms(t *testing.T) {
	assets := []Asset{
		{Name: "tool-macos-aarch64.tar.gz"},
	}
	if _, ok := selectAsset(assets, "darwin", "arm64"); !ok {
		t.Error("Expected macos/aarch64 to match darwin/arm64")
	}
}

// buildTarGz packs files (path -> content) into an in-memory tarball. Paths
// ending in / become directories; executable files use mode 0755.
func buildTarGz(t *testing.T, files map[string]string, executables ...string) []byte {
	t.Helper()
	execSet := make(map[string]bool)
	for _, e := range executables {
		execSet[e] = true
	}

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for path, content := range files {
		if strings.HasSuffix(path, "/") {
			if err := tw.WriteHeader(&tar.Header{Name: path, Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
				t.Fatal(err)
			}
			continue
		}
		mode := int64(0o644)
		if execSet[path] {
			mode = 0o755
		}
		hdr := &tar.Header{Name: path, Mode: mode, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// releaseServer serves a fake GitHub release API plus its asset download.
func releaseServer(t *testing.T, tag, assetName string, archive []byte, downloads *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	var server *httptest.Server
	mux.HandleFunc("/repos/owner/tool/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		release := Release{
			TagName: tag,
			Assets: []Asset{
				{Name: assetName, Size: int64(len(archive)), BrowserDownloadURL: server.URL + "/dl/" + assetName},
			},
		}
		json.NewEncoder(w).Encode(release)
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		*downloads++
		w.Write(archive)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testInstaller(t *testing.T, server *httptest.Server) *Installer {
	t.Helper()
	client := NewClient()
	client.APIBase = server.URL + "/repos"
	facts := &backend.Facts{GOOS: "linux", Family: backend.FamilyDebian, Arch: "amd64"}
	return NewInstaller(client, t.TempDir(), facts)
}

func TestInstallExtractsAndTracksVersion(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"tool-1.0/":          "",
		"tool-1.0/tool":      "#!/bin/sh\necho tool\n",
		"tool-1.0/README.md": "docs",
	}, "tool-1.0/tool")

	downloads := 0
	server := releaseServer(t, "v1.0.0", "tool_1.0_linux_amd64.tar.gz", archive, &downloads)
	installer := testInstaller(t, server)

	if err := installer.Install(context.Background(), "tool", "owner/tool"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	appDir := filepath.Join(installer.root, "tool")

	// The single top-level directory is flattened away.
	if _, err := os.Stat(filepath.Join(appDir, "tool")); err != nil {
		t.Errorf("Expected flattened payload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(appDir, "tool-1.0")); err == nil {
		t.Error("Expected wrapper directory to be flattened")
	}

	// No bin/ in the archive, so one is synthesized with symlinks.
	link := filepath.Join(appDir, "bin", "tool")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Expected bin symlink: %v", err)
	}
	if target != filepath.Join("..", "tool") {
		t.Errorf("Expected relative symlink to ../tool, got %s", target)
	}

	marker, err := os.ReadFile(filepath.Join(appDir, markerName))
	if err != nil {
		t.Fatalf("Expected version marker: %v", err)
	}
	if strings.TrimSpace(string(marker)) != "v1.0.0" {
		t.Errorf("Expected marker v1.0.0, got %q", marker)
	}
	if downloads != 1 {
		t.Errorf("Expected one download, got %d", downloads)
	}
}

func TestInstallSkipsWhenVersionUnchanged(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"tool": "#!/bin/sh\n",
	}, "tool")

	downloads := 0
	server := releaseServer(t, "v1.0.0", "tool_linux_amd64.tar.gz", archive, &downloads)
	installer := testInstaller(t, server)

	for i := 0; i < 2; i++ {
		if err := installer.Install(context.Background(), "tool", "owner/tool@latest"); err != nil {
			t.Fatalf("Install %d: expected no error, got: %v", i, err)
		}
	}
	if downloads != 1 {
		t.Errorf("Expected second install to skip the download, got %d downloads", downloads)
	}
}

func TestInstallKeepsExistingBinDir(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"bin/":     "",
		"bin/tool": "#!/bin/sh\n",
	}, "bin/tool")

	downloads := 0
	server := releaseServer(t, "v2.0.0", "tool_linux_amd64.tgz", archive, &downloads)
	installer := testInstaller(t, server)

	if err := installer.Install(context.Background(), "tool", "owner/tool"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	binTool := filepath.Join(installer.root, "tool", "bin", "tool")
	info, err := os.Lstat(binTool)
	if err != nil {
		t.Fatalf("Expected shipped bin/tool: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Error("Expected shipped binary, not a synthesized symlink")
	}
}

func TestInstallNoMatchingAsset(t *testing.T) {
	archive := buildTarGz(t, map[string]string{"tool": "x"})
	downloads := 0
	server := releaseServer(t, "v1.0.0", "tool_windows_amd64.zip", archive, &downloads)
	installer := testInstaller(t, server)

	err := installer.Install(context.Background(), "tool", "owner/tool")
	if err == nil || !strings.Contains(err.Error(), "no linux/amd64 asset") {
		t.Errorf("Expected asset selection error, got: %v", err)
	}
	if downloads != 0 {
		t.Errorf("Expected no download, got %d", downloads)
	}
}

func TestInstallInvalidSpec(t *testing.T) {
	installer := NewInstaller(NewClient(), t.TempDir(), &backend.Facts{GOOS: "linux", Arch: "amd64"})
	if err := installer.Install(context.Background(), "tool", "not-a-repo"); err == nil {
		t.Error("Expected error for invalid spec")
	}
}

func TestExtractTarGzRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	content := []byte("evil")
	if err := tw.WriteHeader(&tar.Header{Name: "../escape", Mode: 0o644, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gzw.Close()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := extractTarGz(archivePath, filepath.Join(dir, "out")); err == nil {
		t.Error("Expected traversal entry to be rejected")
	}
}

func TestExtractArchiveUnsupportedFormat(t *testing.T) {
	if err := extractArchive("file.rar", t.TempDir()); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestExtractTarGzSymlinks(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)
	content := []byte("#!/bin/sh\n")
	if err := tw.WriteHeader(&tar.Header{Name: "tool-real", Mode: 0o755, Size: int64(len(content))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: "tool", Typeflag: tar.TypeSymlink, Linkname: "tool-real"}); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gzw.Close()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "tool.tar.gz")
	if err := os.WriteFile(archivePath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out")
	if err := extractTarGz(archivePath, out); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	target, err := os.Readlink(filepath.Join(out, "tool"))
	if err != nil {
		t.Fatalf("Expected symlink: %v", err)
	}
	if target != "tool-real" {
		t.Errorf("Expected symlink to tool-real, got %s", target)
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Release{TagName: "v1.0.0"})
	}))
	defer server.Close()

	client := NewClient()
	client.APIBase = server.URL

	release, err := client.LatestRelease(context.Background(), "owner", "tool")
	if err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
	if release.TagName != "v1.0.0" {
		t.Errorf("Expected v1.0.0, got %s", release.TagName)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestClientRateLimitFailsFast(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient()
	client.APIBase = server.URL

	_, err := client.LatestRelease(context.Background(), "owner", "tool")
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("Expected rate limit error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected fail-fast on rate limit, got %d attempts", attempts)
	}
}

func TestClientReleaseNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient()
	client.APIBase = server.URL

	_, err := client.ReleaseByTag(context.Background(), "owner", "tool", "v9.9.9")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected not-found error, got: %v", err)
	}
}

func TestOsAndArchSynonyms(t *testing.T) {
	if !containsAny("tool-x64.tar.gz", archSynonyms("amd64")) {
		t.Error("Expected x64 to match amd64")
	}
	if !containsAny("tool-osx.tar.gz", osSynonyms("darwin")) {
		t.Error("Expected osx to match darwin")
	}
	if containsAny("tool-win.tar.gz", osSynonyms("linux")) {
		t.Error("Expected win to not match linux")
	}
}
