package httpadapter

import (
	"context"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

func TestApplyCORSHeaders_AllowsAnyOriginByDefault(t *testing.T) {
	ctx := &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "http://tablet.ward")
	applyCORSHeaders(ctx, CORSPolicy{})

	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")), "*"; got != want {
		t.Fatalf("allow-origin mismatch: got=%q want=%q", got, want)
	}
	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Headers")), corsAllowHeaders; got != want {
		t.Fatalf("allow-headers mismatch: got=%q want=%q", got, want)
	}
}

func TestApplyCORSHeaders_ListedOrigins(t *testing.T) {
	p := CORSPolicy{AllowOrigins: []string{"http://tablet.ward"}}

	ctx := &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "http://TABLET.ward")
	applyCORSHeaders(ctx, p)
	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")), "http://TABLET.ward"; got != want {
		t.Fatalf("allow-origin mismatch: got=%q want=%q", got, want)
	}
	if got := string(ctx.Response.Header.Peek("Vary")); got != "Origin" {
		t.Fatalf("vary mismatch: got=%q want=Origin", got)
	}

	ctx = &app.RequestContext{}
	ctx.Request.Header.Set("Origin", "http://elsewhere")
	applyCORSHeaders(ctx, p)
	if got := ctx.Response.Header.Peek("Access-Control-Allow-Origin"); len(got) != 0 {
		t.Fatalf("unlisted origin must not be allowed, got %q", got)
	}
}

func TestCORSMiddleware_AbortsPreflight(t *testing.T) {
	ctx := &app.RequestContext{}
	ctx.Request.Header.SetMethod(consts.MethodOptions)
	corsMiddleware(CORSPolicy{})(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusNoContent; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	if !ctx.IsAborted() {
		t.Fatalf("preflight must abort the chain")
	}
}
