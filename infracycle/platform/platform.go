// Package platform classifies the local distribution so the rest of the
// system can pick a package-manager command set for it.
package platform

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Family identifies a supported package-manager lineage.
type Family string

const (
	FamilyDebian  Family = "debian"
	FamilyRHEL    Family = "rhel"
	FamilyAlpine  Family = "alpine"
	FamilyUnknown Family = "unknown"
)

// DefaultOSReleasePath is where Linux distributions publish their identity.
const DefaultOSReleasePath = "/etc/os-release"

// Info holds the fields read from the release descriptor plus the derived
// family tag.
type Info struct {
	ID              string
	IDLike          []string
	VersionID       string
	VersionCodename string
	PrettyName      string
	Family          Family
}

// Detector resolves the identity of the host the process runs on.
type Detector interface {
	Detect() (Info, error)
}

// OSReleaseDetector reads an os-release style descriptor. The descriptor is
// flat KEY=value, which ini handles as a sectionless document.
type OSReleaseDetector struct {
	// Path overrides the descriptor location, mainly for tests.
	Path string
}

func (d OSReleaseDetector) Detect() (Info, error) {
	path := d.Path
	if path == "" {
		path = DefaultOSReleasePath
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return Info{}, fmt.Errorf("read release descriptor %s: %w", path, err)
	}

	section := cfg.Section("")
	info := Info{
		ID:              strings.ToLower(unquote(section.Key("ID").String())),
		VersionID:       unquote(section.Key("VERSION_ID").String()),
		VersionCodename: strings.ToLower(unquote(section.Key("VERSION_CODENAME").String())),
		PrettyName:      unquote(section.Key("PRETTY_NAME").String()),
	}
	for _, like := range strings.Fields(unquote(section.Key("ID_LIKE").String())) {
		info.IDLike = append(info.IDLike, strings.ToLower(like))
	}
	info.Family = Classify(info.ID, info.IDLike)

	return info, nil
}

func unquote(v string) string {
	return strings.Trim(v, `"'`)
}

var familiesByID = map[string]Family{
	"debian":    FamilyDebian,
	"ubuntu":    FamilyDebian,
	"raspbian":  FamilyDebian,
	"linuxmint": FamilyDebian,
	"pop":       FamilyDebian,
	"kali":      FamilyDebian,
	"rhel":      FamilyRHEL,
	"centos":    FamilyRHEL,
	"fedora":    FamilyRHEL,
	"rocky":     FamilyRHEL,
	"almalinux": FamilyRHEL,
	"ol":        FamilyRHEL,
	"amzn":      FamilyRHEL,
	"alpine":    FamilyAlpine,
}

var familiesByLike = map[string]Family{
	"debian": FamilyDebian,
	"ubuntu": FamilyDebian,
	"rhel":   FamilyRHEL,
	"fedora": FamilyRHEL,
	"centos": FamilyRHEL,
}

// Classify maps a distribution identity onto a family tag. An identity not
// covered by the tables is FamilyUnknown, never an error; callers decide
// whether that is fatal.
func Classify(id string, idLike []string) Family {
	if family, ok := familiesByID[id]; ok {
		return family
	}
	for _, like := range idLike {
		if family, ok := familiesByLike[like]; ok {
			return family
		}
	}
	return FamilyUnknown
}
