// Package testutil holds container and HTTP helpers for the integration
// tests of the sinks and the metrics endpoint.
package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	retryEvery     = 50 * time.Millisecond
	mosquittoImage = "eclipse-mosquitto:2.0"
	mqttPort       = "1883/tcp"
)

// brokerConf lets the prediction sink publish without credentials.
const brokerConf = "listener 1883\nallow_anonymous true\npersistence false\n"

// WaitForMetric fetches metricsURL until the body contains substr.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	return retry(ctx, func() error {
		body, err := scrape(ctx, metricsURL)
		if err != nil {
			return err
		}
		if !strings.Contains(body, substr) {
			return fmt.Errorf("metric %q not exported yet", substr)
		}
		return nil
	})
}

func scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// StartMosquitto runs a throwaway MQTT broker and returns its tcp:// URL.
// The returned func terminates the container.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        mosquittoImage,
			ExposedPorts: []string{mqttPort},
			WaitingFor:   wait.ForListeningPort(mqttPort),
			Files: []tc.ContainerFile{{
				Reader:            strings.NewReader(brokerConf),
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("start mosquitto: %w", err)
	}
	stop := func() { _ = cont.Terminate(context.Background()) }

	endpoint, err := cont.PortEndpoint(ctx, mqttPort, "tcp")
	if err != nil {
		stop()
		return "", nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := retry(readyCtx, func() error { return connectOnce(endpoint) }); err != nil {
		stop()
		return "", nil, fmt.Errorf("mosquitto not accepting clients: %w", err)
	}
	return endpoint, stop, nil
}

func connectOnce(broker string) error {
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("fieldcast-readiness"))
	tok := cli.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return err
	}
	cli.Disconnect(100)
	return nil
}

// retry calls fn every retryEvery until it succeeds or ctx ends, wrapping
// the last failure.
func retry(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		case <-time.After(retryEvery):
		}
	}
}
