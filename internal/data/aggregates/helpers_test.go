package aggregates_test

import (
	"context"

	"github.com/oriadata/orgmaster/internal/pkg/dbctx"
)

func dbc() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }
