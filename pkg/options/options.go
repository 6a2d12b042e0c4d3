package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is the contract every per-concern option struct fulfills so
// commands can aggregate, validate and flag-bind them uniformly.
type IOptions interface {
	// Validate checks the option values entered by the user at startup.
	Validate() []error

	// AddFlags binds the options to the given FlagSet.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a host:port string with a valid port.
func ValidateAddress(addr string) error {
	if _, port, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%q is not a valid address: %w", addr, err)
	} else if _, err := net.LookupPort("tcp", port); err != nil {
		return fmt.Errorf("%q is not a valid port: %w", port, err)
	}

	return nil
}
