//go:build !protogen

package policy

import (
	"log/slog"
)

func NewBusinessPolicyProvider(_ *slog.Logger, fallback Rules, _ string) (Provider, error) {
	return NewStaticProvider(fallback), nil
}
