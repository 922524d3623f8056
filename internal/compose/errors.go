package compose

import (
	"errors"
	"fmt"
)

// ErrLayerLoad is matched by *LayerLoadError
var ErrLayerLoad = errors.New("compose: layer load failed")

// LayerLoadError reports a trait image that could not be loaded or stacked
type LayerLoadError struct {
	Path string
	Err  error
}

func (e *LayerLoadError) Error() string {
	return fmt.Sprintf("load layer %s: %v", e.Path, e.Err)
}

func (e *LayerLoadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrLayerLoad
func (e *LayerLoadError) Is(target error) bool {
	return target == ErrLayerLoad
}
