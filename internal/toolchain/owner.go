package toolchain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moby/sys/user"
)

const (
	DefaultPasswdPath = "/etc/passwd"
	DefaultGroupPath  = "/etc/group"
)

// Owner is the target identity as configured: names or numeric ids.
// An empty Group means the user's primary group.
type Owner struct {
	User  string `json:"user,omitempty"`
	Group string `json:"group,omitempty"`
}

// ParseOwner parses "user", "user:group", "1000:1000" and the like.
func ParseOwner(value string) Owner {
	value = strings.TrimSpace(value)
	userPart, groupPart, _ := strings.Cut(value, ":")
	return Owner{User: strings.TrimSpace(userPart), Group: strings.TrimSpace(groupPart)}
}

// IsZero reports whether no owner is configured.
func (o Owner) IsZero() bool {
	return o.User == "" && o.Group == ""
}

func (o Owner) String() string {
	if o.Group == "" {
		return o.User
	}
	return o.User + ":" + o.Group
}

// IdentityDB locates the passwd and group databases used to resolve names.
// Image builds consult the image's files rather than the host's NSS.
type IdentityDB struct {
	PasswdPath string
	GroupPath  string
}

// Lookup resolves o to numeric ids. Unknown names are an error; numeric
// ids absent from the databases are taken as given.
func (db IdentityDB) Lookup(o Owner) (uid, gid int, err error) {
	if o.User == "" {
		return 0, 0, errors.New("owner has no user")
	}
	passwdPath := db.PasswdPath
	if passwdPath == "" {
		passwdPath = DefaultPasswdPath
	}
	groupPath := db.GroupPath
	if groupPath == "" {
		groupPath = DefaultGroupPath
	}

	execUser, err := user.GetExecUserPath(o.String(), nil, passwdPath, groupPath)
	if err != nil {
		return 0, 0, fmt.Errorf("resolve owner %s: %w", o, err)
	}
	return execUser.Uid, execUser.Gid, nil
}
