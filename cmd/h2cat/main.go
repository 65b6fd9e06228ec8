// Command h2cat issues a single HTTP/2 request and prints the response,
// the way curl --http2 does, using the client role directly instead of
// go's own net/http.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/valyala/fasthttp"

	"github.com/dgrr/http2"
)

func main() {
	app := &cli.App{
		Name:  "h2cat",
		Usage: "fetch a URL over HTTP/2 and print the response",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Aliases:  []string{"u"},
				Usage:    "URL to fetch, e.g. https://example.com/",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "method",
				Value: "GET",
				Usage: "HTTP method",
			},
			&cli.BoolFlag{
				Name:  "headers",
				Usage: "print response headers before the body",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	req.Header.SetMethod(c.String("method"))
	req.URI().Update(c.String("url"))

	hc := &fasthttp.HostClient{
		Addr:  string(req.URI().Host()),
		IsTLS: string(req.URI().Scheme()) == "https",
	}

	if err := http2.ConfigureClient(hc, http2.ClientOpts{}); err != nil {
		return fmt.Errorf("h2cat: server does not support HTTP/2: %w", err)
	}

	if err := hc.Do(req, res); err != nil {
		return fmt.Errorf("h2cat: %w", err)
	}

	if c.Bool("headers") {
		fmt.Printf("status: %d\n", res.Header.StatusCode())
		res.Header.VisitAll(func(k, v []byte) {
			fmt.Printf("%s: %s\n", k, v)
		})
		fmt.Println()
	}

	os.Stdout.Write(res.Body())

	return nil
}
