package recipe

import (
	"fmt"
	"os"
	"strings"

	"github.com/warpcode/zinstall/pkg/backend"
	"gopkg.in/yaml.v3"
)

// rawRecipe mirrors the authored YAML structure: flat fields, list-valued
// ones space-separated.
type rawRecipe struct {
	Name     string `yaml:"name"`
	Provides string `yaml:"provides"`
	Depends  string `yaml:"depends"`

	Brew    string `yaml:"brew"`
	Mas     string `yaml:"mas"`
	Flatpak string `yaml:"flatpak"`
	Snap    string `yaml:"snap"`
	Apt     string `yaml:"apt"`
	Dnf     string `yaml:"dnf"`
	Pacman  string `yaml:"pacman"`
	Pipx    string `yaml:"pipx"`
	GitHub  string `yaml:"github"`

	AptRepo  string `yaml:"apt_repo"`
	DnfRepo  string `yaml:"dnf_repo"`
	BrewTaps string `yaml:"brew_taps"`

	PreInstall  string `yaml:"pre_install"`
	PostInstall string `yaml:"post_install"`
	InstallCmd  string `yaml:"install_cmd"`
}

// ParseFile parses one recipe definition. The id is the filename stem.
func ParseFile(path, id string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data, id)
}

// Parse decodes YAML bytes into a validated Recipe.
func Parse(data []byte, id string) (*Recipe, error) {
	var raw rawRecipe
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	rec := &Recipe{
		ID:          id,
		Name:        strings.TrimSpace(raw.Name),
		Provides:    splitList(raw.Provides),
		Depends:     splitList(raw.Depends),
		Methods:     make(map[backend.Backend]string),
		BrewTaps:    splitList(raw.BrewTaps),
		PreInstall:  parseAction(raw.PreInstall),
		PostInstall: parseAction(raw.PostInstall),
		InstallCmd:  parseAction(raw.InstallCmd),
	}
	if rec.Name == "" {
		rec.Name = id
	}

	for b, spec := range map[backend.Backend]string{
		backend.Brew:    raw.Brew,
		backend.Mas:     raw.Mas,
		backend.Flatpak: raw.Flatpak,
		backend.Snap:    raw.Snap,
		backend.Apt:     raw.Apt,
		backend.Dnf:     raw.Dnf,
		backend.Pacman:  raw.Pacman,
		backend.Pipx:    raw.Pipx,
		backend.GitHub:  raw.GitHub,
	} {
		if spec = strings.TrimSpace(spec); spec != "" {
			rec.Methods[b] = spec
		}
	}

	// The custom backend's package spec is the install command itself.
	if rec.InstallCmd != nil {
		rec.Methods[backend.Custom] = strings.TrimSpace(raw.InstallCmd)
	}

	if raw.AptRepo != "" {
		repo, err := parseAptRepo(raw.AptRepo)
		if err != nil {
			return nil, fmt.Errorf("recipe %s: %w", id, err)
		}
		rec.AptRepo = repo
	}
	rec.DnfRepoURL = strings.TrimSpace(raw.DnfRepo)

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// parseAptRepo splits the "key_url|keyring_name|repo_line_template"
// descriptor. The first two segments may be empty for keyless repos.
func parseAptRepo(raw string) (*AptRepo, error) {
	parts := strings.SplitN(raw, "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("apt_repo must have 3 |-separated fields, got %d", len(parts))
	}
	repo := &AptRepo{
		KeyURL:       strings.TrimSpace(parts[0]),
		KeyringName:  strings.TrimSpace(parts[1]),
		LineTemplate: strings.TrimSpace(parts[2]),
	}
	if repo.KeyURL != "" && repo.KeyringName == "" {
		return nil, fmt.Errorf("apt_repo declares a key URL without a keyring name")
	}
	return repo, nil
}
