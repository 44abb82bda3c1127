package sessions

import (
	"context"
	"encoding/json"

	"github.com/jwebster45206/kode-keras/pkg/conversation"
	"github.com/jwebster45206/kode-keras/pkg/scene"
)

// lockedGenerator holds the session's fetch lock for the duration of a call.
type lockedGenerator struct {
	inner  conversation.Generator
	locker Locker
	name   string
}

func (g *lockedGenerator) GenerateScene(ctx context.Context, req scene.Request) (json.RawMessage, error) {
	unlock, err := g.locker.TryLock(ctx, "fetch:"+g.name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = unlock(context.WithoutCancel(ctx))
	}()
	return g.inner.GenerateScene(ctx, req)
}
