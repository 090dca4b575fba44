package executor

import (
	"fmt"
	"regexp"
)

// Values interpolated into command lines are checked against these
// patterns instead of being quoted, so the emitted command text stays
// identical to what the nodes expect.
var (
	nodeNameRe    = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	guestIDRe     = regexp.MustCompile(`^[1-9][0-9]{2,8}$`)
	packageNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+(:[a-z0-9]+)?$`)
	serviceNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9@._:-]*$`)
)

// ValidateNodeName checks a node name is a single DNS label.
func ValidateNodeName(name string) error {
	if !nodeNameRe.MatchString(name) {
		return fmt.Errorf("%w: node name %q", ErrInvalidArgument, name)
	}
	return nil
}

// ValidateGuestID checks a Proxmox VMID/CTID (100 to 999999999).
func ValidateGuestID(id string) error {
	if !guestIDRe.MatchString(id) {
		return fmt.Errorf("%w: guest id %q", ErrInvalidArgument, id)
	}
	return nil
}

// ValidatePackageName checks a Debian package name, optionally with an
// architecture qualifier such as "libc6:i386".
func ValidatePackageName(name string) error {
	if !packageNameRe.MatchString(name) {
		return fmt.Errorf("%w: package name %q", ErrInvalidArgument, name)
	}
	return nil
}

// ValidateServiceName checks a systemd unit name.
func ValidateServiceName(name string) error {
	if !serviceNameRe.MatchString(name) {
		return fmt.Errorf("%w: service name %q", ErrInvalidArgument, name)
	}
	return nil
}
