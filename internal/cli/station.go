package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/railsig/internal/config"
)

// protocolAliases maps the short names accepted by --protocol.
var protocolAliases = map[string]string{
	"sx":                     config.ProtocolSelectrix,
	config.ProtocolSelectrix: config.ProtocolSelectrix,
	config.ProtocolDCC:       config.ProtocolDCC,
	"mm":                     config.ProtocolMotorola,
	config.ProtocolMotorola:  config.ProtocolMotorola,
	config.ProtocolMFX:       config.ProtocolMFX,
}

// loadConfig reads the station file at path, or builds the default station
// of protocol when no file is given.
func loadConfig(path, protocol string) (*config.Config, error) {
	if path != "" {
		if protocol != "" {
			return nil, NewExitError(ExitCommandError, "--config and --protocol are mutually exclusive")
		}
		return config.Load(path)
	}
	if protocol == "" {
		return config.Default(), nil
	}
	name, ok := protocolAliases[protocol]
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown protocol %q: use sx, dcc, mm or mfx", protocol))
	}
	return config.Parse("--protocol", []byte("protocol: "+name+"\n"))
}

// configFailure reports a config load error. Missing files are command
// errors; invalid contents are failures.
func configFailure(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return f.Fail(exitErr.Code, ErrCodeInvalidOption, exitErr.Message, nil)
	}
	problems := validationErrors(err)
	if len(problems) > 0 && problems[0].Code == config.ErrCodeNotFound {
		return f.Fail(ExitCommandError, config.ErrCodeNotFound, problems[0].Message, nil)
	}
	return f.Fail(ExitFailure, ErrCodeConfig, "invalid config", err)
}
