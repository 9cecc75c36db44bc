package registration

import "context"

var requestCtxKey = &contextKey{"request"}

type contextKey struct {
	name string
}

// WithRequestInfo sets the RequestInfo in the given context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestCtxKey, info)
}

// RequestInfoFromContext finds the request info from the context.
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	if ctx == nil {
		return RequestInfo{}, false
	}
	raw, ok := ctx.Value(requestCtxKey).(RequestInfo)
	return raw, ok
}

// resolveRequest prefers the explicit request info and falls back to the
// one carried by ctx.
func resolveRequest(ctx context.Context, req RequestInfo) RequestInfo {
	if req != (RequestInfo{}) {
		return req
	}
	info, _ := RequestInfoFromContext(ctx)
	return info
}
