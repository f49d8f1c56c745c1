// Package tenant resolves tenant names to their shared secret and the
// database they are bound to.
package tenant

import (
	"fmt"
	"strings"
)

type Credentials struct {
	Secret   string
	Database string
}

// Directory is the injectable tenant lookup used by the session registry.
type Directory interface {
	Lookup(name string) (Credentials, bool)
}

// StaticDirectory holds an in-memory tenant table parsed from a
// comma-separated "name:secret:database" specification. Names are matched
// case-insensitively.
type StaticDirectory struct {
	tenants map[string]Credentials
}

func NewStaticDirectory(spec string) (*StaticDirectory, error) {
	directory := &StaticDirectory{tenants: map[string]Credentials{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return directory, nil
	}

	entries := strings.Split(spec, ",")
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid tenant entry %q: expected name:secret:database", entry)
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		secret := parts[1]
		database := strings.TrimSpace(parts[2])
		if name == "" || secret == "" || database == "" {
			return nil, fmt.Errorf("invalid tenant entry %q: empty name/secret/database", entry)
		}
		if _, exists := directory.tenants[name]; exists {
			return nil, fmt.Errorf("duplicate tenant entry %q", name)
		}
		directory.tenants[name] = Credentials{Secret: secret, Database: database}
	}

	return directory, nil
}

func (d *StaticDirectory) Lookup(name string) (Credentials, bool) {
	creds, ok := d.tenants[strings.ToLower(strings.TrimSpace(name))]
	return creds, ok
}

// Len reports the number of configured tenants.
func (d *StaticDirectory) Len() int {
	return len(d.tenants)
}
