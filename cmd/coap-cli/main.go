// Command coap-cli issues a single CoAP request and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/m-smartsolutions/nymea-coap/coap"
	"github.com/m-smartsolutions/nymea-coap/coap/transport"
	"github.com/m-smartsolutions/nymea-coap/coapmsg"
	"github.com/m-smartsolutions/nymea-coap/internal/config"
)

func main() {
	method := flag.String("method", "GET", "EMPTY, GET, POST, PUT or DELETE")
	payload := flag.String("payload", "", "request body for POST/PUT")
	timeout := flag.Duration("timeout", 30*time.Second, "overall request deadline")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: coap-cli [flags] coap://host[:port]/path")
		os.Exit(2)
	}
	url := flag.Arg(0)

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	listener, err := transport.Listen(":0")
	if err != nil {
		logger.WithError(err).Fatal("failed to open UDP socket")
	}
	defer listener.Close()

	client := coap.NewClient(transport.NewResolver(), listener, coap.NewRealClock(), config.Default())
	client.Logger = logger

	req, err := coap.NewRequest(*method, url, []byte(*payload))
	if err != nil {
		logger.WithError(err).Fatal("invalid request")
	}
	if *payload != "" {
		req.ContentFormat = uint16(coapmsg.TextPlain)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	req = req.WithContext(ctx)

	reply := client.Submit(req)

	select {
	case <-reply.Done():
	case <-ctx.Done():
		client.Cancel(reply)
		<-reply.Done()
	}

	result := reply.Result()
	if result.Err != nil {
		logger.WithField("kind", result.Err.Kind).Fatalf("request failed: %v", result.Err)
	}

	fmt.Printf("%s\n", result.StatusCode)
	if len(result.Payload) > 0 {
		os.Stdout.Write(result.Payload)
		fmt.Println()
	}
}
