package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"missionlog/internal/models"

	"github.com/samber/do"
)

type feedEntryResponse struct {
	ID int64 `json:"id"`
}

// ServiceFeed publishes share entries to the feed service. The saga owns the
// timeout so the client does not retry.
type ServiceFeed struct {
	*ServiceHTTP
	container *do.Injector
	baseURL   string
}

func NewServiceFeed(container *do.Injector) (*ServiceFeed, error) {
	return &ServiceFeed{&ServiceHTTP{}, container, strings.TrimRight(os.Getenv("FEED_API_URL"), "/")}, nil
}

func (service *ServiceFeed) CreateShareEntry(ctx context.Context, share models.FeedShareContext) (int64, error) {
	payload, err := json.Marshal(share)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, service.baseURL+"/api/v1/feed/shares", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	// heimdall hands back the response together with the error on 5xx
	resp, err := service.httpClient(0).Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("feed service responded %d", resp.StatusCode)
	}

	var body feedEntryResponse
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return 0, err
	}

	return body.ID, nil
}
