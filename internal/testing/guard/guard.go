// Package guard is blank-imported by package tests that touch internal/app so
// the binaries' startup paths see CRM_TEST_MODE before the flag is cached.
package guard

import "os"

const testModeEnv = "CRM_TEST_MODE"

func init() {
	if os.Getenv(testModeEnv) == "" {
		_ = os.Setenv(testModeEnv, "1")
	}
}
