package platform

import (
	"fmt"
	"strings"
)

// ContainerHostname renders the routable hostname for an instance container:
// <shortHash>-<name>.<ownerUsername>.<userContentDomain>, all lowercase.
func ContainerHostname(shortHash, name, ownerUsername, userContentDomain string) string {
	return strings.ToLower(fmt.Sprintf("%s-%s.%s.%s", shortHash, name, ownerUsername, userContentDomain))
}

// IsolatedName derives the name of an isolated non-master instance from the
// isolation group's master short hash and the parent instance name.
func IsolatedName(masterShortHash, parentName string) string {
	return strings.ToLower(masterShortHash + "--" + parentName)
}

// IsIsolatedName reports whether a name carries the isolation prefix.
func IsIsolatedName(name string) bool {
	return strings.Contains(name, "--")
}
