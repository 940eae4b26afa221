package backend

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

// OSFamily groups distros by their native package manager.
type OSFamily string

const (
	FamilyDarwin  OSFamily = "darwin"
	FamilyDebian  OSFamily = "debian"
	FamilyFedora  OSFamily = "fedora"
	FamilyArch    OSFamily = "arch"
	FamilyUnknown OSFamily = "unknown"
)

// Facts describes the host platform. Collected once per process and passed
// to every component that needs platform decisions.
type Facts struct {
	// GOOS is runtime.GOOS.
	GOOS string

	// Family is the OS family derived from GOOS and /etc/os-release.
	Family OSFamily

	// DistroID is the os-release ID (e.g. "ubuntu", "fedora"); empty on darwin.
	DistroID string

	// Codename is the os-release VERSION_CODENAME (e.g. "noble"); may be empty.
	Codename string

	// Arch is the dpkg-style architecture name (amd64, arm64, i386, ...).
	Arch string
}

// CollectFacts inspects the running host.
func CollectFacts() *Facts {
	f := &Facts{
		GOOS: runtime.GOOS,
		Arch: mapArch(runtime.GOARCH),
	}

	if f.GOOS == "darwin" {
		f.Family = FamilyDarwin
		return f
	}

	release, err := os.Open("/etc/os-release")
	if err != nil {
		log.Debug().Err(err).Msg("os-release not readable, OS family unknown")
		f.Family = FamilyUnknown
		return f
	}
	defer release.Close()

	fields := parseOSRelease(release)
	f.DistroID = fields["ID"]
	f.Codename = fields["VERSION_CODENAME"]
	f.Family = classifyFamily(fields["ID"], fields["ID_LIKE"])
	return f
}

// parseOSRelease reads KEY=value lines, stripping quotes. Malformed lines
// are ignored.
func parseOSRelease(r io.Reader) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[key] = strings.Trim(value, `"'`)
	}
	return fields
}

// classifyFamily maps os-release ID/ID_LIKE to an OSFamily.
func classifyFamily(id, idLike string) OSFamily {
	ids := append([]string{id}, strings.Fields(idLike)...)
	for _, candidate := range ids {
		switch candidate {
		case "debian", "ubuntu", "raspbian", "pop", "linuxmint":
			return FamilyDebian
		case "fedora", "rhel", "centos", "rocky", "almalinux":
			return FamilyFedora
		case "arch", "archarm", "manjaro", "endeavouros":
			return FamilyArch
		}
	}
	return FamilyUnknown
}

// mapArch converts GOARCH to the dpkg-style names used in repo line
// templates and release asset names.
func mapArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "amd64"
	case "arm64":
		return "arm64"
	case "386":
		return "i386"
	case "arm":
		return "armhf"
	default:
		return goarch
	}
}
