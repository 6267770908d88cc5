package portal

import (
	"encoding/json"
	"fmt"
	"os"
)

// CredentialKind tags the form of a CredentialSpec.
type CredentialKind string

const (
	// CredentialNone is the zero value; it never validates.
	CredentialNone CredentialKind = ""
	// CredentialProfile names a profile stored on this machine.
	CredentialProfile CredentialKind = "profile"
	// CredentialPortalLogin carries an explicit url/username/password triple.
	CredentialPortalLogin CredentialKind = "portal_login"
)

// CredentialSpec is the tagged variant of the two supported credential
// forms. Construct it with ProfileCredentials or LoginCredentials; the zero
// value is invalid.
type CredentialSpec struct {
	Kind      CredentialKind
	Profile   string
	PortalURL string
	Username  string
	Password  string
}

// ProfileCredentials references a stored profile by name.
func ProfileCredentials(name string) CredentialSpec {
	return CredentialSpec{Kind: CredentialProfile, Profile: name}
}

// LoginCredentials carries an explicit portal login.
func LoginCredentials(portalURL, username, password string) CredentialSpec {
	return CredentialSpec{
		Kind:      CredentialPortalLogin,
		PortalURL: portalURL,
		Username:  username,
		Password:  password,
	}
}

// Validate checks the variant exhaustively.
func (c CredentialSpec) Validate() error {
	switch c.Kind {
	case CredentialProfile:
		if c.Profile == "" {
			return fmt.Errorf("profile credentials require a profile name")
		}
		return nil
	case CredentialPortalLogin:
		if c.PortalURL == "" || c.Username == "" || c.Password == "" {
			return fmt.Errorf("portal login credentials require url, username and password")
		}
		return nil
	case CredentialNone:
		return fmt.Errorf("no credentials supplied")
	default:
		return fmt.Errorf("unknown credential kind %q", c.Kind)
	}
}

// StoredProfile is one entry of the profile file.
type StoredProfile struct {
	PortalURL string `json:"portal_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// ProfileStore reads stored portal profiles from a JSON file of the form
//
//	{"profiles": {"prod": {"portal_url": "...", "username": "...", "password": "..."}}}
type ProfileStore struct {
	// Path is the location of the profile file.
	Path string
}

// Lookup returns the named profile.
func (s *ProfileStore) Lookup(name string) (StoredProfile, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return StoredProfile{}, fmt.Errorf("failed to read profile store %s: %w", s.Path, err)
	}

	var file struct {
		Profiles map[string]StoredProfile `json:"profiles"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return StoredProfile{}, fmt.Errorf("failed to parse profile store %s: %w", s.Path, err)
	}

	profile, ok := file.Profiles[name]
	if !ok {
		return StoredProfile{}, fmt.Errorf("profile %q not found in %s", name, s.Path)
	}
	return profile, nil
}
