//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/buzzer/internal/version"
)

// Actor identifies the machine and user sending commands.
type Actor struct {
	// Hostname is the local machine name.
	Hostname string
	// Username is the login of the current user.
	Username string
}

// String renders the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	return fmt.Sprintf("%s@%s", a.Username, a.Hostname)
}

// DetectActor gathers host and user information for the server logs.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// UserAgent builds the User-Agent header sent by a client binary.
// The server logs it for every control session.
func UserAgent(program string, actor *Actor) string {
	return fmt.Sprintf("%s (%s)", version.UserAgent(program), actor)
}
