// Package backend defines the fixed set of installation backends, their
// platform availability, precedence, and batching behavior, plus the
// method resolver that picks a backend for a recipe on the current host.
package backend

// Backend identifies one installation mechanism. The set is fixed; there is
// no plugin surface.
type Backend string

const (
	// Brew is the Homebrew formula/cask manager (also covers taps).
	Brew Backend = "brew"

	// Mas is the Mac App Store CLI; only meaningful on darwin.
	Mas Backend = "mas"

	// Flatpak and Snap are the two universal sandbox managers. They are
	// mutually exclusive in practice: whichever is present on the host wins,
	// flatpak by rank when both are.
	Flatpak Backend = "flatpak"
	Snap    Backend = "snap"

	// Apt, Dnf and Pacman are the OS-native package managers.
	Apt    Backend = "apt"
	Dnf    Backend = "dnf"
	Pacman Backend = "pacman"

	// Pipx is the language-level package manager.
	Pipx Backend = "pipx"

	// GitHub installs prebuilt binaries from GitHub release assets.
	GitHub Backend = "github"

	// Custom runs the recipe's install_cmd action.
	Custom Backend = "custom"
)

// All returns every backend in ascending precedence order (most preferred
// first). Resolution depends on this ordering.
func All() []Backend {
	return []Backend{Brew, Mas, Flatpak, Snap, Apt, Dnf, Pacman, Pipx, GitHub, Custom}
}

// Rank returns the precedence rank; lower is preferred.
func (b Backend) Rank() int {
	switch b {
	case Brew:
		return 10
	case Mas:
		return 20
	case Flatpak:
		return 30
	case Snap:
		return 31
	case Apt:
		return 40
	case Dnf:
		return 41
	case Pacman:
		return 42
	case Pipx:
		return 50
	case GitHub:
		return 60
	case Custom:
		return 70
	default:
		return 1 << 16
	}
}

// Batchable reports whether multiple package specs can be handed to the
// backend in one invocation. GitHub and custom installs are one recipe per
// invocation.
func (b Backend) Batchable() bool {
	switch b {
	case GitHub, Custom:
		return false
	default:
		return true
	}
}

// Executable returns the binary probed to decide availability. Empty means
// the backend needs no host executable.
func (b Backend) Executable() string {
	switch b {
	case Brew:
		return "brew"
	case Mas:
		return "mas"
	case Flatpak:
		return "flatpak"
	case Snap:
		return "snap"
	case Apt:
		return "apt-get"
	case Dnf:
		return "dnf"
	case Pacman:
		return "pacman"
	case Pipx:
		return "pipx"
	default:
		return ""
	}
}

// supportedOn checks the OS-family constraint for a backend. Executable
// presence is checked separately by the resolver.
func (b Backend) supportedOn(f *Facts) bool {
	switch b {
	case Mas:
		return f.GOOS == "darwin"
	case Flatpak, Snap:
		return f.GOOS == "linux"
	case Apt:
		return f.Family == FamilyDebian
	case Dnf:
		return f.Family == FamilyFedora
	case Pacman:
		return f.Family == FamilyArch
	default:
		return true
	}
}
