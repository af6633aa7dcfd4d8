package database

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// decodeArgs fills the backend options from loosely typed args. String values are
// converted where the option is numeric so that YAML and command line values work.
// Unknown keys are rejected.
func decodeArgs(backend string, args Args, opts interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           opts,
	})
	if err != nil {
		return errors.Wrapf(err, "%s: could not build args decoder", backend)
	}
	if err := dec.Decode(map[string]interface{}(args)); err != nil {
		return errors.Wrapf(ErrInvalidArgs, "%s: %v", backend, err)
	}
	return nil
}
