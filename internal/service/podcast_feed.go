/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package service

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flowos.app/flowsync/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxFeedBytes = 4 << 20

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID    string `xml:"guid"`
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

// PodcastFeed polls an RSS feed for its newest episode.
type PodcastFeed struct {
	feedURL string
	client  *http.Client
	tracer  trace.Tracer
	logger  *zap.Logger
}

func NewPodcastFeed(feedURL string, tracer trace.Tracer, logger *zap.Logger) *PodcastFeed {
	return &PodcastFeed{
		feedURL: feedURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			),
			Timeout: 10 * time.Second,
		},
		tracer: tracer,
		logger: logger.Named("podcast_feed"),
	}
}

// Latest returns the first item of the feed, or nil if the feed is empty.
func (f *PodcastFeed) Latest(ctx context.Context) (*models.PodcastEpisode, error) {
	ctx, span := f.tracer.Start(ctx, "PodcastFeed.Latest")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("feed returned status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var doc rssDocument
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&doc); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	if len(doc.Channel.Items) == 0 {
		return nil, nil
	}

	item := doc.Channel.Items[0]
	ep := &models.PodcastEpisode{
		ID:    strings.TrimSpace(item.GUID),
		Title: strings.TrimSpace(item.Title),
		Link:  strings.TrimSpace(item.Link),
	}
	if ep.ID == "" {
		ep.ID = ep.Link
	}
	if t, err := time.Parse(time.RFC1123Z, strings.TrimSpace(item.PubDate)); err == nil {
		ep.Published = t
	} else if t, err := time.Parse(time.RFC1123, strings.TrimSpace(item.PubDate)); err == nil {
		ep.Published = t
	}
	f.logger.Debug("Fetched latest podcast episode", zap.String("episodeID", ep.ID))
	return ep, nil
}
