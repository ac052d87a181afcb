// Package httpclient builds the outbound listing requests and the HTTP client
// virtual users share.
//
// # Request Building
//
// [NewRequestBuilder] validates the method, target and headers once; [RequestBuilder.Build]
// then produces a fresh request for every iteration:
//
//	builder, err := httpclient.NewRequestBuilder(http.MethodGet, target, headers)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx)
//
// The target's raw query string is sent exactly as configured, so a value such
// as sort=newest,Desc reaches the server unchanged.
//
// # HTTP Client
//
// [NewClient] returns a client tuned for load generation: keep-alive connections
// sized for many concurrent virtual users and a per-request timeout.
package httpclient
