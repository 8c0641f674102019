// Contains various utility functions related to logging.

package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

// A Verbosity is used as a flag to define logging verbosity. It wraps
// logging.Level so it can be parsed from a named flag value ("warning",
// "info", ...) rather than a numeric one.
type Verbosity logging.Level

// UnmarshalFlag implements the flags.Unmarshaler interface.
func (v *Verbosity) UnmarshalFlag(in string) error {
	level, err := logging.LogLevel(strings.ToUpper(in))
	if err != nil {
		return &flagsVerbosityError{in: in}
	}
	*v = Verbosity(level)
	return nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (v *Verbosity) UnmarshalText(text []byte) error {
	return v.UnmarshalFlag(string(text))
}

// String implements the fmt.Stringer interface.
func (v Verbosity) String() string {
	return logging.Level(v).String()
}

type flagsVerbosityError struct{ in string }

func (e *flagsVerbosityError) Error() string {
	return fmt.Sprintf("unknown verbosity %q (expected one of critical, error, warning, notice, info, debug)", e.in)
}

// InitLogging initialises the stderr logging backend at the given verbosity.
func InitLogging(verbosity Verbosity) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logFormatter())
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(logging.Level(verbosity), "")
	logging.SetBackend(leveled)
}

func logFormatter() logging.Formatter {
	return logging.MustStringFormatter("%{time:15:04:05.000} %{level:7s}: %{message}")
}
