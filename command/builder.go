package command

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/metaoverlayfs/panel/errors"
)

// Marker file names inside a module's backing directory.
const (
	DisableMarker = "disable"
	UpdateMarker  = "update"
	PropFile      = "module.prop"
)

// Paths locates the overlay image, its mount point and the module
// backing directories on the device.
type Paths struct {
	MountDir   string
	ModulesDir string
	ImageFile  string
	LiveFile   string
	LogFile    string
	Binary     string
}

// Builder renders every shell command the panel issues. All embedded
// paths and values are single-quoted, so identifiers read from the device
// cannot break out of their argument.
type Builder struct {
	paths Paths
}

// NewBuilder creates a Builder for the given device layout.
func NewBuilder(p Paths) *Builder {
	return &Builder{paths: p}
}

// Paths returns the device layout the builder renders against.
func (b *Builder) Paths() Paths {
	return b.paths
}

var propKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// ValidateModuleID ensures an identifier names exactly one directory
// entry under the modules directory and is a well-formed live set token.
func ValidateModuleID(id string) error {
	if id == "" {
		return errors.InvalidModuleID(id, "empty")
	}
	if id == "." || id == ".." {
		return errors.InvalidModuleID(id, "reserved path component")
	}
	if strings.ContainsAny(id, "/\n\r\x00") {
		return errors.InvalidModuleID(id, "contains '/', newline or NUL")
	}
	return nil
}

// Quote renders s as a single POSIX shell word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ModuleDir returns the backing directory of a module.
func (b *Builder) ModuleDir(id string) string {
	return path.Join(b.paths.ModulesDir, id)
}

// MarkerPath returns the path of a marker or metadata file of a module.
func (b *Builder) MarkerPath(id, name string) string {
	return path.Join(b.ModuleDir(id), name)
}

func flag(test string) string {
	return test + " && echo 1 || echo 0"
}

// MountCheck prints 1 when the mount point is mounted, 0 otherwise.
func (b *Builder) MountCheck() string {
	return flag("mountpoint -q " + Quote(b.paths.MountDir))
}

// ListMount lists the entries directly under the mount point, one per line.
func (b *Builder) ListMount() string {
	return "ls -1 " + Quote(b.paths.MountDir) + " 2>/dev/null"
}

// FileExists prints 1 when p is a regular file, 0 otherwise.
func (b *Builder) FileExists(p string) string {
	return flag("[ -f " + Quote(p) + " ]")
}

// DirExists prints 1 when p is a directory, 0 otherwise.
func (b *Builder) DirExists(p string) string {
	return flag("[ -d " + Quote(p) + " ]")
}

// ReadProp prints the value of key from a module's module.prop.
func (b *Builder) ReadProp(id, key string) (string, error) {
	if !propKeyPattern.MatchString(key) {
		return "", errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid prop key: %s", key))
	}
	return fmt.Sprintf("grep '^%s=' %s 2>/dev/null | cut -d= -f2-", key, Quote(b.MarkerPath(id, PropFile))), nil
}

// ModuleSizes reports disk usage in KiB of every backing directory.
func (b *Builder) ModuleSizes() string {
	return "du -sk " + Quote(b.paths.ModulesDir) + "/* 2>/dev/null || true"
}

// SetDisabled creates or removes the disable marker of a module.
func (b *Builder) SetDisabled(id string, disabled bool) string {
	marker := Quote(b.MarkerPath(id, DisableMarker))
	if disabled {
		return "touch " + marker
	}
	return "rm -f " + marker
}

// ReadFile prints a file, or nothing when it is missing or unreadable.
func (b *Builder) ReadFile(p string) string {
	return "cat " + Quote(p) + " 2>/dev/null || true"
}

// WriteFile overwrites p with content followed by a newline. Empty content
// truncates the file.
func (b *Builder) WriteFile(p, content string) string {
	if content == "" {
		return ": > " + Quote(p)
	}
	return "printf '%s\\n' " + Quote(content) + " > " + Quote(p)
}

// WriteFileExact overwrites p with content as is, without adding a
// trailing newline.
func (b *Builder) WriteFileExact(p, content string) string {
	if content == "" {
		return ": > " + Quote(p)
	}
	return "printf '%s' " + Quote(content) + " > " + Quote(p)
}

// AppendLine appends one line to p.
func (b *Builder) AppendLine(p, line string) string {
	return "printf '%s\\n' " + Quote(line) + " >> " + Quote(p)
}

// Truncate empties p.
func (b *Builder) Truncate(p string) string {
	return ": > " + Quote(p)
}

// FileSize prints the size of p in bytes.
func (b *Builder) FileSize(p string) string {
	return "stat -c%s " + Quote(p) + " 2>/dev/null"
}

// DiskUsage prints the df line for the filesystem holding dir.
func (b *Builder) DiskUsage(dir string) string {
	return "df -k " + Quote(dir) + " 2>/dev/null | tail -1"
}

// LiveApply patches a single module into the running system.
func (b *Builder) LiveApply(id string) string {
	return Quote(b.paths.Binary) + " -u " + Quote(id)
}

// GetProp reads an Android system property.
func (b *Builder) GetProp(name string) string {
	return "getprop " + Quote(name)
}

// KSUVersion prints the KernelSU daemon version or N/A.
func (b *Builder) KSUVersion() string {
	return `ksud -V 2>/dev/null || echo "N/A"`
}

// Identity prints the effective user identity.
func (b *Builder) Identity() string {
	return "id"
}
