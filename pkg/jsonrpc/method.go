package jsonrpc

import (
	"context"
	"encoding/json"

	"github.com/agentstack/ras-go/pkg/auth"
	"github.com/agentstack/ras-go/pkg/wireerr"
)

// Method is one registered RPC entry: its name, declared authorization
// rule, and a type-erased invoker built by RPC/AuthenticatedRPC.
type Method struct {
	Name         string
	Rule         auth.Rule
	RequestType  any
	ResponseType any
	invoke       func(ctx context.Context, user *auth.AuthenticatedUser, params json.RawMessage) (any, error)
}

func decodeParams[Req any](params json.RawMessage) (Req, error) {
	var req Req
	if len(params) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return req, wireerr.NewInvalidParams(err)
	}
	return req, nil
}

// RPC registers an unauthorized method: the handler receives only the
// request, never a credential.
func RPC[Req, Resp any](name string, handler func(context.Context, Req) (Resp, error)) Method {
	var reqZero Req
	var respZero Resp
	return Method{
		Name:         name,
		Rule:         auth.UnauthorizedRule(),
		RequestType:  reqZero,
		ResponseType: respZero,
		invoke: func(ctx context.Context, _ *auth.AuthenticatedUser, params json.RawMessage) (any, error) {
			req, err := decodeParams[Req](params)
			if err != nil {
				return nil, err
			}
			return handler(ctx, req)
		},
	}
}

// AuthenticatedRPC registers a method that requires a validated
// credential satisfying groups; the handler receives the resolved
// AuthenticatedUser ahead of the request.
func AuthenticatedRPC[Req, Resp any](name string, groups auth.PermissionGroups, handler func(context.Context, auth.AuthenticatedUser, Req) (Resp, error)) Method {
	var reqZero Req
	var respZero Resp
	return Method{
		Name:         name,
		Rule:         auth.PermissionsRule(groups),
		RequestType:  reqZero,
		ResponseType: respZero,
		invoke: func(ctx context.Context, user *auth.AuthenticatedUser, params json.RawMessage) (any, error) {
			req, err := decodeParams[Req](params)
			if err != nil {
				return nil, err
			}
			return handler(ctx, *user, req)
		},
	}
}
