// ABOUTME: Tests for version constants
// ABOUTME: Checks the strings the CLI prints and logs at startup
package version

import (
	"regexp"
	"testing"
)

func TestConstantsDefined(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Version", Version},
		{"Product", Product},
		{"Manufacturer", Manufacturer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Fatalf("%s should not be empty", tt.name)
			}
			if len(tt.value) > 100 {
				t.Errorf("%s is unreasonably long: %q", tt.name, tt.value)
			}
		})
	}
}

func TestVersionIsSemver(t *testing.T) {
	if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(Version) {
		t.Errorf("Version %q is not in major.minor.patch form", Version)
	}
}

func TestProductIsCommandName(t *testing.T) {
	// the product doubles as the cobra command name
	if !regexp.MustCompile(`^[a-z][a-z0-9-]*$`).MatchString(Product) {
		t.Errorf("Product %q is not a valid command name", Product)
	}
}
