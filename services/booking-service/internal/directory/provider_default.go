//go:build !protogen

package directory

import (
	"log/slog"
)

func NewDirectoryProvider(_ *slog.Logger, defaultTimezone string, _ string) (Provider, error) {
	return NewStaticProvider(defaultTimezone), nil
}
