package packagemanager

import (
	"github.com/sirupsen/logrus"

	cm "github.com/Devops-Bot-Official/infracycle-agent/infracycle/commandmanager"
	"github.com/Devops-Bot-Official/infracycle-agent/infracycle/platform"
)

// ForFamily wires the package manager matching a platform family. The
// enterprise family prefers dnf and falls back to yum on hosts that still
// ship only the older tool. An unrecognized family gets the warning noop.
func ForFamily(family platform.Family, manager cm.CommandManager, sudo bool, log *logrus.Logger) PackageManager {
	switch family {
	case platform.FamilyDebian:
		return &AptPackageManager{CommandManager: manager, Logger: log, Sudo: sudo}
	case platform.FamilyRHEL:
		if _, err := manager.LookPath("dnf"); err == nil {
			return &DnfPackageManager{CommandManager: manager, Logger: log, Sudo: sudo}
		}
		return &YumPackageManager{CommandManager: manager, Logger: log, Sudo: sudo}
	case platform.FamilyAlpine:
		return &ApkPackageManager{CommandManager: manager, Logger: log, Sudo: sudo}
	default:
		if log != nil {
			log.WithField("family", string(family)).Warn("Unsupported platform family; package operations will be skipped")
		}
		return &NoopPackageManager{Family: family, Logger: log}
	}
}
