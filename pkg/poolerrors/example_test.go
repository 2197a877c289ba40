package poolerrors_test

import (
	"errors"
	"fmt"

	"github.com/ajitpratap0/spawnpool/pkg/poolerrors"
)

// Example demonstrates creating an error and attaching context.
func Example() {
	err := poolerrors.New(poolerrors.ErrorTypeDisposed, "pool already disposed").
		WithDetail("pool", "bullets")

	fmt.Println(err.Error())
	fmt.Println(err.Details["pool"])

	// Output:
	// disposed: pool already disposed
	// bullets
}

// ExampleWrap shows how a hook failure stays reachable after wrapping.
func ExampleWrap() {
	errNoTexture := errors.New("texture not loaded")

	err := poolerrors.Wrap(errNoTexture, poolerrors.ErrorTypeHook, "create hook failed")

	fmt.Println(poolerrors.IsType(err, poolerrors.ErrorTypeHook))
	fmt.Println(errors.Is(err, errNoTexture))

	// Output:
	// true
	// true
}
