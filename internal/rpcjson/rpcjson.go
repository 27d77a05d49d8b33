// Package rpcjson hand-authors the thin registration and call helpers a
// protoc-gen-micro-generated stub would otherwise provide, using go-micro's
// default JSON codec instead of protobuf wire encoding. Every RPC method
// handler in this module follows the plain go-micro signature
// func(ctx context.Context, req *Req, rsp *Rsp) error and needs no generated
// interface to be dispatched.
package rpcjson

import (
	"context"
	"fmt"

	"go-micro.dev/v5/client"
	"go-micro.dev/v5/server"
)

// Register exposes handler's exported methods as RPC endpoints on srv under
// name. handler must satisfy go-micro's reflection-based handler shape
// (exported methods of the form (ctx, *Req, *Rsp) error).
func Register(srv server.Server, name string, handler interface{}) error {
	return srv.Handle(srv.NewHandler(handler, server.Name(name)))
}

// Call invokes service.method with req, decoding the JSON response into a
// freshly allocated Rsp. The generic parameter lets call sites avoid a type
// assertion on every call.
func Call[Rsp any](ctx context.Context, c client.Client, service, method string, req interface{}) (*Rsp, error) {
	rsp := new(Rsp)

	request := c.NewRequest(service, method, req, client.WithContentType("application/json"))
	if err := c.Call(ctx, request, rsp); err != nil {
		return nil, fmt.Errorf("rpcjson: call %s.%s: %w", service, method, err)
	}
	return rsp, nil
}
