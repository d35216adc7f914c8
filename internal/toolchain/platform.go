package toolchain

import (
	"fmt"
	"strings"

	"github.com/containerd/platforms"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// Platform is the os/arch pair an archive is selected for.
type Platform struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Variant string `json:"variant,omitempty"`
}

// ParsePlatform parses specifiers such as "linux/amd64" or "linux/arm/v7".
// An empty specifier selects the host platform.
func ParsePlatform(specifier string) (Platform, error) {
	if strings.TrimSpace(specifier) == "" {
		return DefaultPlatform(), nil
	}
	p, err := platforms.Parse(specifier)
	if err != nil {
		return Platform{}, fmt.Errorf("parse platform %q: %w", specifier, err)
	}
	return fromSpec(p), nil
}

// DefaultPlatform returns the platform the process is running on.
func DefaultPlatform() Platform {
	return fromSpec(platforms.DefaultSpec())
}

func fromSpec(p specs.Platform) Platform {
	p = platforms.Normalize(p)
	return Platform{OS: p.OS, Arch: p.Architecture, Variant: p.Variant}
}

func (p Platform) String() string {
	return platforms.Format(specs.Platform{OS: p.OS, Architecture: p.Arch, Variant: p.Variant})
}

// templateOS returns the os token used in archive URLs.
func (s ToolSpec) templateOS(p Platform) string {
	if mapped, ok := s.OSMap[p.OS]; ok {
		return mapped
	}
	return p.OS
}

// templateArch returns the arch token used in archive URLs. A map key of
// arch+variant (e.g. "armv6") wins over the bare arch.
func (s ToolSpec) templateArch(p Platform) string {
	if p.Variant != "" {
		if mapped, ok := s.ArchMap[p.Arch+p.Variant]; ok {
			return mapped
		}
	}
	if mapped, ok := s.ArchMap[p.Arch]; ok {
		return mapped
	}
	return p.Arch
}
