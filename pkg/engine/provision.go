package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/rs/zerolog/log"
	"github.com/warpcode/zinstall/pkg/backend"
	"github.com/warpcode/zinstall/pkg/recipe"
)

// Default locations for backend repository metadata. Overridable for tests
// and non-root prefixes.
const (
	DefaultAptSourcesDir = "/etc/apt/sources.list.d"
	DefaultAptKeyringDir = "/etc/apt/keyrings"
	DefaultYumReposDir   = "/etc/yum.repos.d"
)

// Provisioner idempotently configures backend repositories and signing keys
// before installation. Every operation is safe to re-run: files are written
// only when absent or changed, taps added only when missing.
type Provisioner struct {
	runner  Runner
	facts   *backend.Facts
	session *SessionState
	client  *http.Client

	// AptSourcesDir holds per-recipe .list files.
	AptSourcesDir string

	// AptKeyringDir holds dearmored signing keyrings.
	AptKeyringDir string

	// YumReposDir holds standalone .repo files.
	YumReposDir string
}

// NewProvisioner creates a provisioner with the standard system locations.
func NewProvisioner(runner Runner, facts *backend.Facts, session *SessionState) *Provisioner {
	return &Provisioner{
		runner:        runner,
		facts:         facts,
		session:       session,
		client:        &http.Client{Timeout: 2 * time.Minute},
		AptSourcesDir: DefaultAptSourcesDir,
		AptKeyringDir: DefaultAptKeyringDir,
		YumReposDir:   DefaultYumReposDir,
	}
}

// Provision performs any repository/key setup the recipe's resolved backend
// needs. The returned flag reports whether system state actually changed,
// which forces a metadata refresh for that backend.
func (p *Provisioner) Provision(ctx context.Context, rec *recipe.Recipe, b backend.Backend) (bool, error) {
	switch b {
	case backend.Apt:
		if rec.AptRepo == nil {
			return false, nil
		}
		return p.provisionApt(ctx, rec)
	case backend.Dnf:
		if rec.DnfRepoURL == "" {
			return false, nil
		}
		return p.provisionDnf(ctx, rec)
	case backend.Brew:
		if len(rec.BrewTaps) == 0 {
			return false, nil
		}
		return p.provisionTaps(ctx, rec)
	default:
		return false, nil
	}
}

// provisionApt installs the signing keyring (only if absent) and writes the
// rendered source line (only if its content differs byte-for-byte).
func (p *Provisioner) provisionApt(ctx context.Context, rec *recipe.Recipe) (bool, error) {
	repo := rec.AptRepo
	changed := false

	keyringPath := ""
	if repo.KeyURL != "" {
		keyringPath = filepath.Join(p.AptKeyringDir, repo.KeyringName+".gpg")
		if _, err := os.Stat(keyringPath); os.IsNotExist(err) {
			key, err := p.fetchKey(ctx, repo.KeyURL)
			if err != nil {
				return changed, err
			}
			keyring, err := dearmorKey(key)
			if err != nil {
				return changed, NewPermanentError("failed to convert signing key", err).
					WithCode(CodeRepoProvisioning).WithRecipe(rec.ID).WithBackend(string(backend.Apt))
			}
			if err := os.MkdirAll(p.AptKeyringDir, 0o755); err != nil {
				return changed, NewPermanentError("failed to create keyring directory", err).
					WithCode(CodeRepoProvisioning).WithRecipe(rec.ID)
			}
			if err := os.WriteFile(keyringPath, keyring, 0o644); err != nil {
				return changed, NewPermanentError("failed to write keyring", err).
					WithCode(CodeRepoProvisioning).WithRecipe(rec.ID)
			}
			log.Info().Str("recipe", rec.ID).Str("keyring", keyringPath).Msg("Installed signing key")
			changed = true
		}
	}

	line := p.renderRepoLine(repo.LineTemplate, keyringPath)
	sourcePath := filepath.Join(p.AptSourcesDir, rec.ID+".list")
	desired := []byte(line + "\n")

	existing, err := os.ReadFile(sourcePath)
	if err == nil && bytes.Equal(existing, desired) {
		return changed, nil
	}

	if err := os.MkdirAll(p.AptSourcesDir, 0o755); err != nil {
		return changed, NewPermanentError("failed to create sources directory", err).
			WithCode(CodeRepoProvisioning).WithRecipe(rec.ID)
	}
	if err := os.WriteFile(sourcePath, desired, 0o644); err != nil {
		return changed, NewPermanentError("failed to write apt source", err).
			WithCode(CodeRepoProvisioning).WithRecipe(rec.ID)
	}
	log.Info().Str("recipe", rec.ID).Str("source", sourcePath).Msg("Wrote apt source")
	return true, nil
}

// renderRepoLine substitutes the runtime tokens into a source template.
func (p *Provisioner) renderRepoLine(template, keyringPath string) string {
	return strings.NewReplacer(
		"{codename}", p.facts.Codename,
		"{arch}", p.facts.Arch,
		"{id}", p.facts.DistroID,
		"{keyring}", keyringPath,
	).Replace(template)
}

// provisionDnf registers a standalone .repo file by URL, only when the
// corresponding local file is absent.
func (p *Provisioner) provisionDnf(ctx context.Context, rec *recipe.Recipe) (bool, error) {
	local := filepath.Join(p.YumReposDir, path.Base(rec.DnfRepoURL))
	if _, err := os.Stat(local); err == nil {
		return false, nil
	}

	if err := p.runner.Run(ctx, "dnf", "config-manager", "--add-repo", rec.DnfRepoURL); err != nil {
		return false, NewPermanentError("failed to add dnf repo", err).
			WithCode(CodeRepoProvisioning).WithRecipe(rec.ID).WithBackend(string(backend.Dnf))
	}
	log.Info().Str("recipe", rec.ID).Str("repo", rec.DnfRepoURL).Msg("Added dnf repo")
	return true, nil
}

// provisionTaps adds each declared tap not already listed by brew.
func (p *Provisioner) provisionTaps(ctx context.Context, rec *recipe.Recipe) (bool, error) {
	out, err := p.runner.Output(ctx, "brew", "tap")
	if err != nil {
		return false, NewPermanentError("failed to list brew taps", err).
			WithCode(CodeRepoProvisioning).WithRecipe(rec.ID).WithBackend(string(backend.Brew))
	}
	existing := make(map[string]bool)
	for _, tap := range strings.Fields(out) {
		existing[tap] = true
	}

	changed := false
	for _, tap := range rec.BrewTaps {
		if existing[tap] {
			continue
		}
		if err := p.runner.Run(ctx, "brew", "tap", tap); err != nil {
			return changed, NewPermanentError(fmt.Sprintf("failed to add tap %s", tap), err).
				WithCode(CodeRepoProvisioning).WithRecipe(rec.ID).WithBackend(string(backend.Brew))
		}
		log.Info().Str("recipe", rec.ID).Str("tap", tap).Msg("Added brew tap")
		changed = true
	}
	return changed, nil
}

// Refresh runs the backend's repository metadata refresh. It executes at
// most once per backend per session, unless a provisioning step flagged a
// change or the caller forces it.
func (p *Provisioner) Refresh(ctx context.Context, b backend.Backend, force bool) error {
	if !force && p.session.Refreshed(b) {
		return nil
	}

	var name string
	var args []string
	switch b {
	case backend.Apt:
		name, args = "apt-get", []string{"update"}
	case backend.Dnf:
		name, args = "dnf", []string{"makecache"}
	case backend.Brew:
		name, args = "brew", []string{"update"}
	default:
		p.session.MarkRefreshed(b)
		return nil
	}

	log.Info().Str("backend", string(b)).Msg("Refreshing repository metadata")
	if err := p.runner.Run(ctx, name, args...); err != nil {
		return NewTransientError("repository metadata refresh failed", err).
			WithCode(CodeRepoProvisioning).WithBackend(string(b))
	}
	p.session.MarkRefreshed(b)
	return nil
}

// fetchKey downloads a signing key.
func (p *Provisioner) fetchKey(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewPermanentError("invalid key URL", err).WithCode(CodeRepoProvisioning)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewTransientError("key download failed", err).WithCode(CodeNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewTransientError(
			fmt.Sprintf("key download failed: HTTP %d", resp.StatusCode), nil).
			WithCode(CodeNetwork)
	}
	return io.ReadAll(resp.Body)
}

// dearmorKey converts an ASCII-armored PGP key into its binary keyring
// form. Keys already in binary form pass through unchanged.
func dearmorKey(data []byte) ([]byte, error) {
	if !bytes.Contains(data, []byte("BEGIN PGP PUBLIC KEY BLOCK")) {
		return data, nil
	}
	block, err := armor.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("armor decode: %w", err)
	}
	return io.ReadAll(block.Body)
}
