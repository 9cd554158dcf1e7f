package main

import (
	"errors"
	"fmt"
	"os"

	apperrors "symcheck/internal/errors"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err.Error()))
		var cfgErr *apperrors.ConfigurationError
		if errors.As(err, &cfgErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
