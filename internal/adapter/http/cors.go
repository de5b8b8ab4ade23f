package httpadapter

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// CORSPolicy controls the headers the operator tablets' browsers see. An
// empty AllowOrigins allows every origin.
type CORSPolicy struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

const (
	corsAllowMethods = "GET,POST,OPTIONS"
	corsAllowHeaders = "Content-Type,Authorization"
	corsMaxAge       = "600"
)

func (p CORSPolicy) allowOrigin(origin string) (string, bool) {
	if len(p.AllowOrigins) == 0 {
		return "*", true
	}
	for _, o := range p.AllowOrigins {
		if o == "*" {
			return "*", true
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin, true
		}
	}
	return "", false
}

func applyCORSHeaders(ctx *app.RequestContext, p CORSPolicy) {
	allowed, ok := p.allowOrigin(string(ctx.Request.Header.Peek("Origin")))
	if !ok {
		return
	}
	ctx.Response.Header.Set("Access-Control-Allow-Origin", allowed)
	if allowed != "*" {
		ctx.Response.Header.Set("Vary", "Origin")
	}
	ctx.Response.Header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	ctx.Response.Header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	ctx.Response.Header.Set("Access-Control-Max-Age", corsMaxAge)
}

func corsMiddleware(p CORSPolicy) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		applyCORSHeaders(ctx, p)
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}
