package exchange

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

// doWithDeadline executes a fasthttp request honoring the context deadline
// when one is set, falling back to the driver's configured timeout.
func doWithDeadline(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if deadline, ok := ctx.Deadline(); ok {
		return client.DoDeadline(req, resp, deadline)
	}
	return client.DoTimeout(req, resp, timeout)
}
