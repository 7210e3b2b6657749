// Package rest implements the REST dispatcher: a verb+path registrar
// sharing the JSON-RPC dispatcher's auth contract and observability
// hooks, with OpenAPI 3.0.3 schema emission.
package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/wireerr"
)

// Route is one registered REST entry: its verb, chi path template,
// declared authorization rule, and a type-erased invoker built by
// Endpoint/AuthenticatedEndpoint.
type Route struct {
	Verb         string
	Path         string
	Rule         auth.Rule
	RequestType  any
	ResponseType any

	decodePath func(r *http.Request) (any, error)
	invoke     func(ctx context.Context, user *auth.AuthenticatedUser, pathReq any, r *http.Request) (any, error)
}

func hasBody(verb string) bool {
	switch verb {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// decodePathParams builds a Req from the route's chi URL parameters,
// run ahead of authentication so a malformed path never reaches the
// auth provider.
func decodePathParams[Req any](r *http.Request) (any, error) {
	var req Req

	rctx := chi.RouteContext(r.Context())
	if rctx == nil || len(rctx.URLParams.Keys) == 0 {
		return req, nil
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, wireerr.NewInvalidRequest("malformed path parameters")
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, wireerr.NewInvalidRequest("malformed path parameters")
	}
	return req, nil
}

// decodeBody overlays a POST/PUT/PATCH body onto the path-decoded Req,
// leaving fields the body doesn't mention untouched.
func decodeBody[Req any](pathReq any, r *http.Request) (Req, error) {
	req, _ := pathReq.(Req)

	if !hasBody(r.Method) {
		return req, nil
	}

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return req, wireerr.NewInvalidParams(err)
	}
	if len(body) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, wireerr.NewInvalidParams(err)
	}
	return req, nil
}

// Endpoint registers an unauthorized REST route: the handler receives
// only the request, never a credential.
func Endpoint[Req, Resp any](verb, path string, handler func(context.Context, Req) (Resp, error)) Route {
	var reqZero Req
	var respZero Resp
	return Route{
		Verb:         verb,
		Path:         path,
		Rule:         auth.UnauthorizedRule(),
		RequestType:  reqZero,
		ResponseType: respZero,
		decodePath:   decodePathParams[Req],
		invoke: func(ctx context.Context, _ *auth.AuthenticatedUser, pathReq any, r *http.Request) (any, error) {
			req, err := decodeBody[Req](pathReq, r)
			if err != nil {
				return nil, err
			}
			return handler(ctx, req)
		},
	}
}

// AuthenticatedEndpoint registers a REST route that requires a
// validated credential satisfying groups.
func AuthenticatedEndpoint[Req, Resp any](verb, path string, groups auth.PermissionGroups, handler func(context.Context, auth.AuthenticatedUser, Req) (Resp, error)) Route {
	var reqZero Req
	var respZero Resp
	return Route{
		Verb:         verb,
		Path:         path,
		Rule:         auth.PermissionsRule(groups),
		RequestType:  reqZero,
		ResponseType: respZero,
		decodePath:   decodePathParams[Req],
		invoke: func(ctx context.Context, user *auth.AuthenticatedUser, pathReq any, r *http.Request) (any, error) {
			req, err := decodeBody[Req](pathReq, r)
			if err != nil {
				return nil, err
			}
			return handler(ctx, *user, req)
		},
	}
}
