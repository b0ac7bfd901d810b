package services

import (
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
)

const HTTP_CLIENT_TIMEOUT = 10 * time.Second

type ServiceHTTP struct {
	timeout time.Duration
}

func (service *ServiceHTTP) httpClient(retries int) *httpclient.Client {
	timeout := service.timeout
	if timeout <= 0 {
		timeout = HTTP_CLIENT_TIMEOUT
	}

	opts := []httpclient.Option{
		httpclient.WithHTTPTimeout(timeout),
		httpclient.WithRetryCount(retries),
	}
	if retries > 0 {
		backoff := heimdall.NewConstantBackoff(200*time.Millisecond, 100*time.Millisecond)
		opts = append(opts, httpclient.WithRetrier(heimdall.NewRetrier(backoff)))
	}

	return httpclient.NewClient(opts...)
}
