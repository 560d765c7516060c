package blocker

import (
	"context"

	"github.com/davidleathers/callshield-core/internal/domain/rules"
)

// NativeBridge pushes filtering state down to the platform call screener.
// Implementations talk to whatever the host OS exposes; the engine only
// needs these five operations.
type NativeBridge interface {
	EnableBlocking(ctx context.Context, enabled bool) error
	UpdateBlockSettings(ctx context.Context, settings rules.BlockSettings) error
	UpdateCustomList(ctx context.Context, entries []*rules.Entry) error
	CheckPermissions(ctx context.Context) (bool, error)
	RequestPermissions(ctx context.Context) (bool, error)
}

// NoopBridge is the bridge used when no platform screener is attached,
// for headless deployments and tests.
type NoopBridge struct{}

func (NoopBridge) EnableBlocking(context.Context, bool) error                 { return nil }
func (NoopBridge) UpdateBlockSettings(context.Context, rules.BlockSettings) error { return nil }
func (NoopBridge) UpdateCustomList(context.Context, []*rules.Entry) error     { return nil }
func (NoopBridge) CheckPermissions(context.Context) (bool, error)             { return true, nil }
func (NoopBridge) RequestPermissions(context.Context) (bool, error)           { return true, nil }
