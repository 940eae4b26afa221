package backend

import (
	"strings"
	"testing"
)

func TestParseOSRelease(t *testing.T) {
	input := `# comment line
NAME="Ubuntu"
ID=ubuntu
ID_LIKE=debian
VERSION_CODENAME=noble
EMPTY=
malformed line without equals
QUOTED='single'
`
	fields := parseOSRelease(strings.NewReader(input))

	if fields["ID"] != "ubuntu" {
		t.Errorf("Expected ID ubuntu, got %q", fields["ID"])
	}
	if fields["VERSION_CODENAME"] != "noble" {
		t.Errorf("Expected codename noble, got %q", fields["VERSION_CODENAME"])
	}
	if fields["NAME"] != "Ubuntu" {
		t.Errorf("Expected quotes stripped, got %q", fields["NAME"])
	}
	if fields["QUOTED"] != "single" {
		t.Errorf("Expected single quotes stripped, got %q", fields["QUOTED"])
	}
	if _, exists := fields["malformed line without equals"]; exists {
		t.Error("Expected malformed line to be ignored")
	}
}

func TestClassifyFamily(t *testing.T) {
	tests := []struct {
		id     string
		idLike string
		want   OSFamily
	}{
		{"ubuntu", "debian", FamilyDebian},
		{"debian", "", FamilyDebian},
		{"pop", "ubuntu debian", FamilyDebian},
		{"fedora", "", FamilyFedora},
		{"rocky", "rhel centos fedora", FamilyFedora},
		{"manjaro", "arch", FamilyArch},
		{"gentoo", "", FamilyUnknown},
		{"", "", FamilyUnknown},
	}

	for _, tt := range tests {
		if got := classifyFamily(tt.id, tt.idLike); got != tt.want {
			t.Errorf("classifyFamily(%q, %q) = %s, want %s", tt.id, tt.idLike, got, tt.want)
		}
	}
}

func TestMapArch(t *testing.T) {
	tests := []struct {
		goarch string
		want   string
	}{
		{"amd64", "amd64"},
		{"arm64", "arm64"},
		{"386", "i386"},
		{"arm", "armhf"},
		{"riscv64", "riscv64"},
	}

	for _, tt := range tests {
		if got := mapArch(tt.goarch); got != tt.want {
			t.Errorf("mapArch(%q) = %q, want %q", tt.goarch, got, tt.want)
		}
	}
}
