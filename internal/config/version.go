package config

import (
	"fmt"

	"github.com/blang/semver/v4"
)

// CheckRequiredVersion verifies the running version satisfies the stack's
// required_version constraint. Development builds (non-semver versions)
// always pass.
func CheckRequiredVersion(s *Stack, current string) error {
	if s.RequiredVersion == "" {
		return nil
	}
	want, err := semver.ParseRange(s.RequiredVersion)
	if err != nil {
		return fmt.Errorf("invalid required_version %q: %w", s.RequiredVersion, err)
	}
	have, err := semver.ParseTolerant(current)
	if err != nil {
		return nil
	}
	if !want(have) {
		return fmt.Errorf("converge %s does not satisfy required_version %q", have, s.RequiredVersion)
	}
	return nil
}
